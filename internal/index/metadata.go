package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meow-stack/runscope/internal/types"
)

// Metadata files a producer may write at the top of a run directory.
const (
	RunFile    = "run.yaml"
	ResultFile = "result.json"
	InputFile  = "input.json"
)

var metadataFiles = [...]string{RunFile, ResultFile, InputFile}

// resultSlot is ResultFile's position in metadataFiles.
const resultSlot = 1

// runFile is the preferred metadata record.
type runFile struct {
	ID        string `yaml:"id"`
	Status    string `yaml:"status"`
	StartedAt string `yaml:"started_at"`
	EndedAt   string `yaml:"ended_at"`
}

// metadata is what the index extracts from a run's metadata files.
type metadata struct {
	Status    types.RunStatus
	StartedAt *time.Time
	EndedAt   *time.Time
	Subject   string
}

// readMetadata parses whatever metadata files exist in dir. Unreadable or
// malformed files are ignored; fields they would have supplied fall back.
func readMetadata(dir string) metadata {
	md := metadata{Status: types.RunStatusUnknown}

	if data, err := os.ReadFile(filepath.Join(dir, RunFile)); err == nil {
		var rf runFile
		if yaml.Unmarshal(data, &rf) == nil {
			md.Status = types.ParseRunStatus(rf.Status)
			md.StartedAt = parseTime(rf.StartedAt)
			md.EndedAt = parseTime(rf.EndedAt)
		}
	}

	if result, ok := readJSONObject(filepath.Join(dir, ResultFile)); ok {
		if md.Status == types.RunStatusUnknown {
			md.Status = statusFromResult(result)
		}
		if md.StartedAt == nil {
			md.StartedAt = parseTime(stringField(result, "started_at"))
		}
		if md.EndedAt == nil {
			md.EndedAt = parseTime(stringField(result, "ended_at"))
		}
	}

	if input, ok := readJSONObject(filepath.Join(dir, InputFile)); ok {
		md.Subject = subjectFromInput(input)
	}

	return md
}

// statusFromResult prefers an explicit status string, then the ok flag.
func statusFromResult(result map[string]any) types.RunStatus {
	if s, ok := result["status"].(string); ok && strings.TrimSpace(s) != "" {
		return types.ParseRunStatus(s)
	}
	if ok, isBool := result["ok"].(bool); isBool {
		if ok {
			return types.RunStatusOK
		}
		return types.RunStatusError
	}
	return types.RunStatusUnknown
}

// subjectFromInput looks up the subject a run was started for.
func subjectFromInput(input map[string]any) string {
	if desktop, ok := input["desktop"].(map[string]any); ok {
		if s := stringField(desktop, "canonical_id"); s != "" {
			return s
		}
	}
	for _, key := range []string{"paper_id", "id"} {
		if s := stringField(input, key); s != "" {
			return s
		}
	}
	if req, ok := input["request"].(map[string]any); ok {
		return stringField(req, "paper_id")
	}
	return ""
}

func readJSONObject(path string) (map[string]any, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}
