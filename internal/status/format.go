package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/meow-stack/runscope/internal/roots"
	"github.com/meow-stack/runscope/internal/types"
)

// FormatOptions controls output formatting.
type FormatOptions struct {
	NoColor   bool
	Quiet     bool
	Unchanged bool      // Include unchanged paths in diff output
	Now       time.Time // Reference time for ages; zero means time.Now()
}

func (o FormatOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// FormatRunDetail formats a single run with full details.
func FormatRunDetail(d *RunDetail, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString(formatHeader(&d.Summary, opts))

	if len(d.Copies) > 1 && !opts.Quiet {
		b.WriteString("\n\n")
		b.WriteString(formatCopies(d.Copies))
	}

	if len(d.Artifacts) > 0 {
		b.WriteString("\n\n")
		b.WriteString(formatKindStats(d.KindStats, opts))
	}

	b.WriteString("\n")
	return b.String()
}

// FormatRunList formats a list of runs in the order given.
func FormatRunList(sums []types.RunSummary, opts FormatOptions) string {
	var b strings.Builder

	stats := ComputeListStats(sums)
	fmt.Fprintf(&b, "Found %d run(s)", stats.Total)
	if stats.Total > 0 {
		fmt.Fprintf(&b, ": %d ok, %d failed, %d other, %s",
			stats.Succeeded, stats.Failed, stats.Other, FormatSize(stats.Bytes))
	}
	b.WriteString("\n")

	for _, s := range sums {
		b.WriteString("\n")
		b.WriteString(formatRunListItem(&s, opts))
	}

	return b.String()
}

// FormatDiffReport formats a run comparison. Unchanged paths are omitted
// unless opts.Unchanged is set.
func FormatDiffReport(r *DiffReport, opts FormatOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Comparing %s → %s\n", r.RunA, r.RunB)

	shown := 0
	for _, e := range r.Entries {
		if e.Change == types.ChangeUnchanged && !opts.Unchanged {
			continue
		}
		if shown == 0 {
			b.WriteString("\n")
		}
		shown++
		b.WriteString(formatDiffEntry(e, opts))
		b.WriteString("\n")
	}

	c := r.Counts
	if !c.Changed() {
		b.WriteString("\nNo differences.\n")
		return b.String()
	}

	reset := resetColor(opts.NoColor)
	fmt.Fprintf(&b, "\n%s%d added%s, %s%d removed%s, %s%d modified%s, %d unchanged\n",
		getColor("green", opts.NoColor), c.Added, reset,
		getColor("red", opts.NoColor), c.Removed, reset,
		getColor("yellow", opts.NoColor), c.Modified, reset,
		c.Unchanged)
	return b.String()
}

// FormatRoots formats the state of every configured root.
func FormatRoots(statuses []roots.RootStatus, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString("Roots (highest precedence first):\n")
	for _, st := range statuses {
		color := getColor("green", opts.NoColor)
		icon := "●"
		switch st.State {
		case types.RootStateMissing:
			color = getColor("gray", opts.NoColor)
			icon = "○"
		case types.RootStateUnavailable:
			color = getColor("red", opts.NoColor)
			icon = "✗"
		}
		fmt.Fprintf(&b, "  %s%s %-7s%s %s (%s)\n",
			color, icon, st.Root.Kind, resetColor(opts.NoColor), st.Root.Path, st.State)
		if st.Error != "" && !opts.Quiet {
			fmt.Fprintf(&b, "      %s\n", st.Error)
		}
	}
	return b.String()
}

func formatHeader(s *types.RunSummary, opts FormatOptions) string {
	var b strings.Builder

	statusIcon := getStatusIcon(s.Status)
	statusColor := getStatusColor(s.Status, opts.NoColor)

	fmt.Fprintf(&b, "Run:      %s\n", s.ID)
	if s.Subject != "" {
		fmt.Fprintf(&b, "Subject:  %s\n", s.Subject)
	}
	fmt.Fprintf(&b, "Status:   %s%s %s%s\n",
		statusColor, statusIcon, s.Status, resetColor(opts.NoColor))
	fmt.Fprintf(&b, "Started:  %s (%s)", formatTime(s.StartedAt), FormatAge(s.StartedAt, opts.now()))

	if s.EndedAt != nil {
		fmt.Fprintf(&b, "\nEnded:    %s (took %s)", formatTime(*s.EndedAt), formatDuration(s.Duration()))
	}

	fmt.Fprintf(&b, "\nLocation: %s", s.Dir)
	if s.RootKind == types.RootKindLegacy {
		b.WriteString(" [legacy]")
	}
	if s.Overlap {
		fmt.Fprintf(&b, " %s(shadows other copies)%s", getColor("cyan", opts.NoColor), resetColor(opts.NoColor))
	}

	fmt.Fprintf(&b, "\nSize:     %s in %d file(s)", FormatSize(s.SizeBytes), s.ArtifactCount)

	return b.String()
}

func formatCopies(copies []types.ResolvedRun) string {
	var b strings.Builder

	b.WriteString("Copies:\n")
	for i, c := range copies {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(&b, "  %s [%d] %-7s %s\n", marker, i, c.Root.Kind, c.Dir)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatKindStats(k KindStats, opts FormatOptions) string {
	parts := []string{}
	if k.Logs > 0 {
		parts = append(parts, fmt.Sprintf("%s%d log%s", getColor("cyan", opts.NoColor), k.Logs, resetColor(opts.NoColor)))
	}
	if k.Files > 0 {
		parts = append(parts, fmt.Sprintf("%d text", k.Files))
	}
	if k.Binary > 0 {
		parts = append(parts, fmt.Sprintf("%s%d binary%s", getColor("gray", opts.NoColor), k.Binary, resetColor(opts.NoColor)))
	}
	return fmt.Sprintf("Artifacts: %s (%s)", strings.Join(parts, ", "), FormatSize(k.Bytes))
}

func formatRunListItem(s *types.RunSummary, opts FormatOptions) string {
	var b strings.Builder

	statusIcon := getStatusIcon(s.Status)
	statusColor := getStatusColor(s.Status, opts.NoColor)

	fmt.Fprintf(&b, "%s%s %s%s", statusColor, statusIcon, s.ID, resetColor(opts.NoColor))
	if s.RootKind == types.RootKindLegacy {
		b.WriteString(" [legacy]")
	}

	if !opts.Quiet {
		fmt.Fprintf(&b, "\n  Status:   %s%s%s", statusColor, s.Status, resetColor(opts.NoColor))
		fmt.Fprintf(&b, "\n  Started:  %s", FormatAge(s.StartedAt, opts.now()))
		if s.EndedAt != nil {
			fmt.Fprintf(&b, "\n  Duration: %s", formatDuration(s.Duration()))
		}
		fmt.Fprintf(&b, "\n  Size:     %s, %d file(s)", FormatSize(s.SizeBytes), s.ArtifactCount)
		if s.Subject != "" {
			fmt.Fprintf(&b, "\n  Subject:  %s", s.Subject)
		}
	}
	b.WriteString("\n")

	return b.String()
}

func formatDiffEntry(e types.DiffEntry, opts FormatOptions) string {
	reset := resetColor(opts.NoColor)
	switch e.Change {
	case types.ChangeAdded:
		return fmt.Sprintf("%sA  %s%s (%s)", getColor("green", opts.NoColor), e.RelPath, reset, FormatSize(e.SizeB))
	case types.ChangeRemoved:
		return fmt.Sprintf("%sD  %s%s (%s)", getColor("red", opts.NoColor), e.RelPath, reset, FormatSize(e.SizeA))
	case types.ChangeModified:
		return fmt.Sprintf("%sM  %s%s (%s → %s)", getColor("yellow", opts.NoColor), e.RelPath, reset,
			FormatSize(e.SizeA), FormatSize(e.SizeB))
	default:
		return fmt.Sprintf("   %s", e.RelPath)
	}
}

// FormatSize renders a byte count for humans. Negative sizes mean the
// file is absent on that side.
func FormatSize(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

// FormatAge renders how long before now t was, e.g. "3 hours ago".
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Formatting helpers

func getStatusIcon(status types.RunStatus) string {
	switch {
	case status.IsSuccess():
		return "✓"
	case status.IsFailure():
		return "✗"
	case status == types.RunStatusRunning:
		return "●"
	case status == types.RunStatusNeedsRetry:
		return "↻"
	default:
		return "?"
	}
}

func getStatusColor(status types.RunStatus, noColor bool) string {
	if noColor {
		return ""
	}

	switch {
	case status.IsSuccess():
		return "\033[32m" // Green
	case status.IsFailure():
		return "\033[31m" // Red
	case status == types.RunStatusRunning:
		return "\033[33m" // Yellow
	case status == types.RunStatusNeedsRetry:
		return "\033[36m" // Cyan
	default:
		return "\033[90m" // Gray
	}
}

func getColor(name string, noColor bool) string {
	if noColor {
		return ""
	}

	switch name {
	case "red":
		return "\033[31m"
	case "green":
		return "\033[32m"
	case "yellow":
		return "\033[33m"
	case "cyan":
		return "\033[36m"
	case "gray":
		return "\033[90m"
	default:
		return ""
	}
}

func resetColor(noColor bool) string {
	if noColor {
		return ""
	}
	return "\033[0m"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
