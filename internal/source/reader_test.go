package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theirongolddev/ccmeter/internal/model"
)

const (
	lineUser1 = `{"type":"user","timestamp":"2025-06-01T10:00:00Z","sessionId":"s1","cwd":"/p","message":{"role":"user","content":"one"}}`
	lineAsst1 = `{"type":"assistant","timestamp":"2025-06-01T10:00:05Z","sessionId":"s1","message":{"id":"m1","model":"claude-opus-4-6","usage":{"input_tokens":10,"output_tokens":5}}}`
	lineUser2 = `{"type":"user","timestamp":"2025-06-01T10:01:00Z","sessionId":"s1","message":{"role":"user","content":"two"}}`
)

// writeLog creates a temp JSONL file holding content verbatim.
func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func TestReadFrom_FullFile(t *testing.T) {
	path := writeLog(t, strings.Join([]string{lineUser1, lineAsst1, "garbage", lineUser2}, "\n")+"\n")

	res, err := ReadFrom(path, model.FileCursor{})
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(res.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(res.Events))
	}
	if res.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", res.ParseErrors)
	}
	info, _ := os.Stat(path)
	if res.Cursor.Offset != info.Size() {
		t.Errorf("Offset = %d, want %d", res.Cursor.Offset, info.Size())
	}
	if res.Cursor.LastModel != "claude-opus-4-6" || res.Cursor.LastDir != "/p" {
		t.Errorf("cursor state = %q/%q", res.Cursor.LastModel, res.Cursor.LastDir)
	}
	if got := res.Events[2].Model; got != "claude-opus-4-6" {
		t.Errorf("second prompt model = %q, want carried assistant model", got)
	}
	if res.Events[1].Ref.Offset != int64(len(lineUser1)+1) {
		t.Errorf("second event offset = %d, want %d", res.Events[1].Ref.Offset, len(lineUser1)+1)
	}
}

func TestReadFrom_PartialTrailingLine(t *testing.T) {
	half := lineUser2[:len(lineUser2)/2]
	path := writeLog(t, lineUser1+"\n"+half)

	res, err := ReadFrom(path, model.FileCursor{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 1 || res.ParseErrors != 0 {
		t.Fatalf("events/errors = %d/%d, want 1/0 (partial line deferred)", len(res.Events), res.ParseErrors)
	}
	if res.Cursor.Offset != int64(len(lineUser1)+1) {
		t.Fatalf("Offset = %d, want end of first line", res.Cursor.Offset)
	}

	// Writer finishes the line.
	appendLog(t, path, lineUser2[len(half):]+"\n")

	next, err := ReadFrom(path, res.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Events) != 1 || next.ParseErrors != 0 {
		t.Fatalf("events/errors = %d/%d, want 1/0", len(next.Events), next.ParseErrors)
	}
	if next.Events[0].Directory != "/p" {
		t.Errorf("Directory = %q, want carried cwd /p", next.Events[0].Directory)
	}
}

func TestReadFrom_IncrementalMatchesFull(t *testing.T) {
	lines := []string{lineUser1, lineAsst1, lineUser2}
	path := writeLog(t, "")

	var cur model.FileCursor
	var incremental []model.Event
	for _, l := range lines {
		appendLog(t, path, l+"\n")
		res, err := ReadFrom(path, cur)
		if err != nil {
			t.Fatal(err)
		}
		incremental = append(incremental, res.Events...)
		cur = res.Cursor
	}

	full, err := ReadFrom(path, model.FileCursor{})
	if err != nil {
		t.Fatal(err)
	}
	if len(full.Events) != len(incremental) {
		t.Fatalf("full = %d events, incremental = %d", len(full.Events), len(incremental))
	}
	for i := range full.Events {
		a, b := full.Events[i], incremental[i]
		if a.Ref != b.Ref || a.Model != b.Model || a.Directory != b.Directory || a.Tokens != b.Tokens {
			t.Errorf("event %d differs: full %+v, incremental %+v", i, a, b)
		}
	}
}

func TestReadFrom_Truncation(t *testing.T) {
	path := writeLog(t, lineUser1+"\n"+lineAsst1+"\n")
	res, err := ReadFrom(path, model.FileCursor{})
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(lineUser2+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	next, err := ReadFrom(path, res.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if !next.Truncated {
		t.Fatal("Truncated = false, want true after shrink")
	}
	if len(next.Events) != 1 || next.Events[0].Ref.Offset != 0 {
		t.Fatalf("events = %+v, want the single rewritten line at offset 0", next.Events)
	}
	if next.Events[0].Model != "" {
		t.Errorf("Model = %q, want empty after state reset", next.Events[0].Model)
	}
}

func TestReadFrom_Unchanged(t *testing.T) {
	path := writeLog(t, lineUser1+"\n")
	res, _ := ReadFrom(path, model.FileCursor{})
	again, err := ReadFrom(path, res.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Events) != 0 || again.Cursor != res.Cursor {
		t.Errorf("second read = %d events, cursor %+v; want nothing new", len(again.Events), again.Cursor)
	}
}

func TestReadWithRetry_MissingFile(t *testing.T) {
	cur := model.FileCursor{Path: "/nope", Offset: 10}
	if _, err := ReadWithRetry(filepath.Join(t.TempDir(), "gone.jsonl"), cur); err == nil {
		t.Fatal("ReadWithRetry on missing file succeeded, want error")
	}
}
