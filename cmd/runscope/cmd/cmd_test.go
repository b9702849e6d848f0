package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/artifact"
	"github.com/meow-stack/runscope/internal/config"
	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/launcher"
	"github.com/meow-stack/runscope/internal/status"
	"github.com/meow-stack/runscope/internal/testutil"
	"github.com/meow-stack/runscope/internal/types"
)

type project struct {
	dir     string
	primary string
	legacy  string
	rec     *launcher.Recorder
}

// resetFlags restores every package-level flag to its default.
func resetFlags() {
	verbose, workDir, configPath, noColor = false, "", "", false
	lsStatus, lsLimit, lsJSON, lsLong, lsIDs = nil, 0, false, false, false
	showCopy, showJSON, showArtifacts, showQuiet = 0, false, false, false
	resolveAll, resolveJSON = false, false
	artifactsCopy, artifactsInclude, artifactsExclude, artifactsJSON = 0, nil, nil, false
	catCopy, catPretty, openCopy, revealCopy = 0, false, 0, 0
	copyTo, copyCopy = "", 0
	searchLog, searchIgnoreCase, searchRegex = "stdout.log", false, false
	searchAllLines, searchCount, searchJSON, searchCopy = false, false, false, 0
	diffDetail, diffInclude, diffExclude = "", nil, nil
	diffUnchanged, diffJSON, diffExitCode = false, false, false
	rootsJSON, configJSON = false, false
}

// setupProject creates a working directory whose config points at a
// primary root with r100 and a legacy root with r100 and r050.
func setupProject(t *testing.T) project {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvPrimaryRoot, "")
	t.Setenv(config.EnvLegacyRoots, "")
	t.Setenv(config.EnvLogLevel, "error")

	dir := t.TempDir()
	p := project{
		dir:     dir,
		primary: filepath.Join(dir, "out"),
		legacy:  filepath.Join(dir, "logs", "runs"),
		rec:     &launcher.Recorder{},
	}

	testutil.WriteFile(t, filepath.Join(dir, config.DirName, "config.toml"),
		"[roots]\nprimary = '"+p.primary+"'\nlegacy = ['"+p.legacy+"']\n")
	testutil.WriteFile(t, filepath.Join(p.primary, "r100", "stdout.log"), "primary copy\nERROR once\n")
	testutil.WriteFile(t, filepath.Join(p.primary, "r100", "run.yaml"), "status: ok\nstarted_at: \"2026-05-02T00:00:00Z\"\n")
	testutil.WriteFile(t, filepath.Join(p.legacy, "r100", "stdout.log"), "legacy copy\n")
	testutil.WriteFile(t, filepath.Join(p.legacy, "r050", "stdout.log"), "older run\n")
	testutil.WriteFile(t, filepath.Join(p.legacy, "r050", "result.json"), `{"ok": false, "started_at": "2026-04-01T00:00:00Z"}`)

	resetFlags()
	workDir = dir
	noColor = true

	oldHandoff := newHandoff
	newHandoff = func() artifact.Handoff { return p.rec }
	t.Cleanup(func() {
		newHandoff = oldHandoff
		resetFlags()
	})
	return p
}

// run invokes a command's RunE directly and captures its stdout.
func run(t *testing.T, c *cobra.Command, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	defer func() {
		c.SetOut(nil)
		c.SetErr(nil)
	}()
	err := fn(c, args)
	return out.String(), err
}

func TestRootCmdFlags(t *testing.T) {
	for _, name := range []string{"verbose", "workdir", "config", "no-color"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found", name)
		}
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	want := []string{"ls", "show", "resolve", "artifacts", "cat", "open", "reveal", "copy", "search", "diff", "roots", "config"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestLsTable(t *testing.T) {
	setupProject(t)

	output, err := run(t, lsCmd, runLs)
	if err != nil {
		t.Fatalf("runLs failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 runs, got:\n%s", output)
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("first line should be the header, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "r100") || !strings.HasPrefix(lines[2], "r050") {
		t.Errorf("runs should be newest first, got:\n%s", output)
	}
	if !strings.Contains(lines[1], "primary*") {
		t.Errorf("overlapping run should be marked, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "legacy") {
		t.Errorf("legacy run should show its root, got %q", lines[2])
	}
}

func TestLsJSONAndFilters(t *testing.T) {
	setupProject(t)
	lsJSON = true

	output, err := run(t, lsCmd, runLs)
	if err != nil {
		t.Fatalf("runLs failed: %v", err)
	}
	var parsed struct {
		Runs []types.RunSummary `json:"runs"`
	}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	if len(parsed.Runs) != 2 || parsed.Runs[0].ID != "r100" || !parsed.Runs[0].Overlap {
		t.Errorf("unexpected runs: %+v", parsed.Runs)
	}

	lsStatus = []string{"error"}
	output, err = run(t, lsCmd, runLs)
	if err != nil {
		t.Fatalf("runLs failed: %v", err)
	}
	parsed.Runs = nil
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(parsed.Runs) != 1 || parsed.Runs[0].ID != "r050" {
		t.Errorf("status filter should keep only r050, got %+v", parsed.Runs)
	}
}

func TestLsIDs(t *testing.T) {
	setupProject(t)
	lsIDs = true

	output, err := run(t, lsCmd, runLs)
	if err != nil {
		t.Fatalf("runLs failed: %v", err)
	}
	if output != "r050\nr100\n" {
		t.Errorf("expected sorted IDs, got %q", output)
	}
}

func TestLsEmptyFilter(t *testing.T) {
	setupProject(t)
	lsStatus = []string{"running"}

	output, err := run(t, lsCmd, runLs)
	if err != nil {
		t.Fatalf("runLs failed: %v", err)
	}
	if !strings.Contains(output, "No running runs") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestShow(t *testing.T) {
	p := setupProject(t)

	output, err := run(t, showCmd, runShow, "r100")
	if err != nil {
		t.Fatalf("runShow failed: %v", err)
	}
	for _, want := range []string{"Run:      r100", "✓ ok", "Copies:", filepath.Join(p.legacy, "r100")} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got:\n%s", want, output)
		}
	}
}

func TestShowLegacyCopyJSON(t *testing.T) {
	setupProject(t)
	showCopy = 1
	showJSON = true
	showArtifacts = true

	output, err := run(t, showCmd, runShow, "r100")
	if err != nil {
		t.Fatalf("runShow failed: %v", err)
	}
	var detail status.RunDetail
	if err := json.Unmarshal([]byte(output), &detail); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if detail.Summary.RootKind != types.RootKindLegacy {
		t.Errorf("RootKind = %s, want legacy", detail.Summary.RootKind)
	}
	if detail.KindStats.Logs != 1 {
		t.Errorf("KindStats = %+v", detail.KindStats)
	}
}

func TestShowNotFound(t *testing.T) {
	setupProject(t)

	_, err := run(t, showCmd, runShow, "r999")
	if !rerrors.HasCode(err, rerrors.CodeRunNotFound) {
		t.Errorf("expected RUN_001, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	p := setupProject(t)

	output, err := run(t, resolveCmd, runResolve, "r100")
	if err != nil {
		t.Fatalf("runResolve failed: %v", err)
	}
	if output != filepath.Join(p.primary, "r100")+"\n" {
		t.Errorf("unexpected output: %q", output)
	}

	resolveAll = true
	output, err = run(t, resolveCmd, runResolve, "r100")
	if err != nil {
		t.Fatalf("runResolve --all failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 copies, got:\n%s", output)
	}
	fields := strings.Fields(lines[2])
	if len(fields) != 3 || fields[0] != "1" || fields[1] != "legacy" || fields[2] != filepath.Join(p.legacy, "r100") {
		t.Errorf("legacy copy row = %q", lines[2])
	}
}

func TestArtifacts(t *testing.T) {
	setupProject(t)
	artifactsInclude = []string{"*.log"}

	output, err := run(t, artifactsCmd, runArtifacts, "r100")
	if err != nil {
		t.Fatalf("runArtifacts failed: %v", err)
	}
	if !strings.Contains(output, "stdout.log") || strings.Contains(output, "run.yaml") {
		t.Errorf("include filter not applied, got:\n%s", output)
	}

	artifactsInclude = []string{"[bad"}
	_, err = run(t, artifactsCmd, runArtifacts, "r100")
	if !rerrors.HasCode(err, rerrors.CodeInvalidPattern) {
		t.Errorf("expected SEARCH_001, got %v", err)
	}
}

func TestCat(t *testing.T) {
	setupProject(t)

	output, err := run(t, catCmd, runCat, "r100", "stdout.log")
	if err != nil {
		t.Fatalf("runCat failed: %v", err)
	}
	if output != "primary copy\nERROR once\n" {
		t.Errorf("unexpected output: %q", output)
	}

	catCopy = 1
	output, err = run(t, catCmd, runCat, "r100", "stdout.log")
	if err != nil {
		t.Fatalf("runCat --copy 1 failed: %v", err)
	}
	if output != "legacy copy\n" {
		t.Errorf("unexpected legacy output: %q", output)
	}
}

func TestCatPretty(t *testing.T) {
	setupProject(t)
	catPretty = true

	output, err := run(t, catCmd, runCat, "r050", "result.json")
	if err != nil {
		t.Fatalf("runCat --pretty failed: %v", err)
	}
	want := "{\n  \"ok\": false,\n  \"started_at\": \"2026-04-01T00:00:00Z\"\n}\n"
	if output != want {
		t.Errorf("pretty output = %q, want %q", output, want)
	}

	output, err = run(t, catCmd, runCat, "r050", "stdout.log")
	if err != nil {
		t.Fatalf("runCat --pretty on text failed: %v", err)
	}
	if output != "older run\n" {
		t.Errorf("non-JSON content should pass through, got %q", output)
	}
}

func TestCatRejectsTraversal(t *testing.T) {
	setupProject(t)

	output, err := run(t, catCmd, runCat, "r100", "../../../etc/passwd")
	if !rerrors.HasCode(err, rerrors.CodePathTraversal) {
		t.Errorf("expected PATH_001, got %v", err)
	}
	if output != "" {
		t.Errorf("nothing should be written, got %q", output)
	}
}

func TestOpenRevealCopyPath(t *testing.T) {
	p := setupProject(t)

	if _, err := run(t, openCmd, runOpen, "r100", "stdout.log"); err != nil {
		t.Fatalf("runOpen failed: %v", err)
	}
	if _, err := run(t, revealCmd, runReveal, "r050"); err != nil {
		t.Fatalf("runReveal failed: %v", err)
	}
	if _, err := run(t, copyCmd, runCopy, "r100"); err != nil {
		t.Fatalf("runCopy failed: %v", err)
	}

	calls := p.rec.Calls()
	want := []launcher.Call{
		{Action: launcher.ActionOpen, Path: filepath.Join(p.primary, "r100", "stdout.log")},
		{Action: launcher.ActionReveal, Path: filepath.Join(p.legacy, "r050")},
		{Action: launcher.ActionCopyPath, Path: filepath.Join(p.primary, "r100")},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestCopyTo(t *testing.T) {
	p := setupProject(t)
	dest := t.TempDir()
	copyTo = dest

	output, err := run(t, copyCmd, runCopy, "r050", "stdout.log")
	if err != nil {
		t.Fatalf("runCopy failed: %v", err)
	}
	if !strings.Contains(output, filepath.Join(dest, "stdout.log")) {
		t.Errorf("unexpected output: %q", output)
	}
	data, err := os.ReadFile(filepath.Join(dest, "stdout.log"))
	if err != nil || string(data) != "older run\n" {
		t.Errorf("copied content = %q, %v", data, err)
	}

	copyTo = filepath.Join(p.legacy, "r050")
	_, err = run(t, copyCmd, runCopy, "r050", "stdout.log")
	if !rerrors.HasCode(err, rerrors.CodeDestinationRejected) {
		t.Errorf("expected PATH_002, got %v", err)
	}

	copyTo = dest
	if _, err := run(t, copyCmd, runCopy, "r050"); err == nil {
		t.Error("copy --to without a path should fail")
	}
	if len(p.rec.Calls()) != 0 {
		t.Errorf("copy --to should not touch the clipboard: %+v", p.rec.Calls())
	}
}

func TestSearch(t *testing.T) {
	setupProject(t)

	output, err := run(t, searchCmd, runSearch, "r100", "ERROR")
	if err != nil {
		t.Fatalf("runSearch failed: %v", err)
	}
	if output != "2:ERROR once\n" {
		t.Errorf("unexpected output: %q", output)
	}

	searchAllLines = true
	output, err = run(t, searchCmd, runSearch, "r100", "ERROR")
	if err != nil {
		t.Fatalf("runSearch --all-lines failed: %v", err)
	}
	if output != "1:primary copy\n2:ERROR once\n" {
		t.Errorf("unexpected output: %q", output)
	}

	searchAllLines = false
	searchCount = true
	searchIgnoreCase = true
	output, err = run(t, searchCmd, runSearch, "r100", "copy")
	if err != nil {
		t.Fatalf("runSearch --count failed: %v", err)
	}
	if output != "1\n" {
		t.Errorf("unexpected count: %q", output)
	}
}

func TestSearchErrors(t *testing.T) {
	setupProject(t)

	_, err := run(t, searchCmd, runSearch, "r100", "")
	if !rerrors.HasCode(err, rerrors.CodeInvalidPattern) {
		t.Errorf("expected SEARCH_001, got %v", err)
	}

	searchLog = "missing.log"
	_, err = run(t, searchCmd, runSearch, "r100", "x")
	if !rerrors.HasCode(err, rerrors.CodeArtifactNotFound) {
		t.Errorf("expected ARTIFACT_001, got %v", err)
	}
}

func TestHighlight(t *testing.T) {
	noColor = false
	defer func() { noColor = false }()

	m := types.LogMatch{LineText: "a ERROR b", Spans: []types.Span{{Start: 2, End: 7}}}
	if got := highlight(m); got != "a \033[1;31mERROR\033[0m b" {
		t.Errorf("highlight = %q", got)
	}
}

func TestDiff(t *testing.T) {
	setupProject(t)

	output, err := run(t, diffCmd, runDiff, "r100", "r050")
	if err != nil {
		t.Fatalf("runDiff failed: %v", err)
	}
	for _, want := range []string{"Comparing r100 → r050", "A  result.json", "D  run.yaml", "M  stdout.log"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got:\n%s", want, output)
		}
	}

	diffDetail = "stdout.log"
	output, err = run(t, diffCmd, runDiff, "r100", "r050")
	if err != nil {
		t.Fatalf("runDiff --detail failed: %v", err)
	}
	if !strings.Contains(output, "+older run") || !strings.Contains(output, "-primary copy") {
		t.Errorf("unexpected detail:\n%s", output)
	}
}

func TestDiffCopiesAndExitCode(t *testing.T) {
	setupProject(t)
	diffJSON = true
	diffExitCode = true

	output, err := run(t, diffCmd, runDiff, "r100")
	if err != errRunsDiffer {
		t.Errorf("expected errRunsDiffer, got %v", err)
	}
	var report status.DiffReport
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if report.RunA != "r100 [0]" || report.RunB != "r100 [1]" {
		t.Errorf("labels = %q, %q", report.RunA, report.RunB)
	}
	if report.Counts.Removed != 1 || report.Counts.Modified != 1 {
		t.Errorf("counts = %+v", report.Counts)
	}
}

func TestRoots(t *testing.T) {
	p := setupProject(t)

	output, err := run(t, rootsCmd, runRoots)
	if err != nil {
		t.Fatalf("runRoots failed: %v", err)
	}
	if !strings.Contains(output, p.primary+" (available)") || !strings.Contains(output, p.legacy+" (available)") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestConfigShowsEffectiveRoots(t *testing.T) {
	p := setupProject(t)
	configJSON = true

	output, err := run(t, configCmd, runConfig)
	if err != nil {
		t.Fatalf("runConfig failed: %v", err)
	}
	var view effectiveConfig
	if err := json.Unmarshal([]byte(output), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if view.PrimaryRoot != p.primary {
		t.Errorf("PrimaryRoot = %q, want %q", view.PrimaryRoot, p.primary)
	}
	if len(view.LegacyRoots) != 1 || view.LegacyRoots[0] != p.legacy {
		t.Errorf("LegacyRoots = %v", view.LegacyRoots)
	}
	if view.LogLevel != "error" {
		t.Errorf("env log level not applied: %q", view.LogLevel)
	}
}

func TestRelativeEnvPrimaryRootIsRejected(t *testing.T) {
	setupProject(t)
	t.Setenv(config.EnvPrimaryRoot, "relative/out")

	for _, c := range []struct {
		cmd *cobra.Command
		fn  func(*cobra.Command, []string) error
	}{{configCmd, runConfig}, {lsCmd, runLs}} {
		_, err := run(t, c.cmd, c.fn)
		if !rerrors.HasCode(err, rerrors.CodeConfigInvalidValue) {
			t.Errorf("%s: expected CONFIG_002, got %v", c.cmd.Name(), err)
		}
	}
}

func TestRelativeFileRootIsRejected(t *testing.T) {
	p := setupProject(t)
	testutil.WriteFile(t, filepath.Join(p.dir, config.DirName, "config.toml"), `
[roots]
primary = "out"
`)

	_, err := run(t, lsCmd, runLs)
	if !rerrors.HasCode(err, rerrors.CodeConfigInvalidValue) {
		t.Errorf("expected CONFIG_002, got %v", err)
	}
}

func TestMissingPrimaryRoot(t *testing.T) {
	setupProject(t)
	workDir = t.TempDir()

	_, err := run(t, lsCmd, runLs)
	if !rerrors.HasCode(err, rerrors.CodeConfigMissingField) {
		t.Errorf("expected CONFIG_001, got %v", err)
	}
}
