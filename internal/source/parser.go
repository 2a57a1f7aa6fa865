// Package source discovers Claude Code JSONL logs and turns their lines
// into validated conversation events.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

var (
	patCwd1 = []byte(`"cwd":"`)
	patCwd2 = []byte(`"cwd": "`)
)

// ErrMalformed marks a line that is not a valid event record.
var ErrMalformed = errors.New("malformed line")

const syntheticModel = "<synthetic>"

// LineState carries per-file context from one line to the next.
type LineState struct {
	LastModel string
	LastDir   string
}

// ParseLine validates a single JSONL line. A nil error with ok=false means the
// line is well-formed but carries nothing to account for (progress, summary,
// system lines, assistant lines without usage).
//
// Routing by top-level "type":
//   - "user", "assistant" -> full decode and field validation
//   - "system"            -> byte-level cwd extraction only
//   - anything else       -> skipped if it is valid JSON, malformed otherwise
func ParseLine(line []byte, st *LineState, ref model.EventRef) (model.Event, bool, error) {
	switch extractTopLevelType(line) {
	case "user", "assistant":
	case "system":
		if c := extractCwdBytes(line); c != "" {
			st.LastDir = c
		}
		return model.Event{}, false, nil
	default:
		if !json.Valid(line) {
			return model.Event{}, false, fmt.Errorf("%w: invalid JSON", ErrMalformed)
		}
		return model.Event{}, false, nil
	}

	var entry RawEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return model.Event{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if entry.Timestamp == "" {
		return model.Event{}, false, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
	if err != nil {
		return model.Event{}, false, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, entry.Timestamp)
	}
	if entry.SessionID == "" {
		return model.Event{}, false, fmt.Errorf("%w: missing sessionId", ErrMalformed)
	}
	if entry.Message == nil {
		return model.Event{}, false, fmt.Errorf("%w: missing message", ErrMalformed)
	}

	if entry.Cwd != "" {
		st.LastDir = entry.Cwd
	}
	ev := model.Event{
		Timestamp: ts.UTC(),
		SessionID: entry.SessionID,
		Directory: st.LastDir,
		Ref:       ref,
	}

	if entry.Type == "user" {
		ev.Role = model.RoleUser
		ev.Model = st.LastModel
		ev.IsPrompt = isPromptContent(entry.Message.Content)
		ev.TodoCount, ev.HasTodos = todosFromToolResult(entry.ToolUseResult)
		return ev, true, nil
	}

	msg := entry.Message
	if msg.Model == syntheticModel {
		return model.Event{}, false, nil
	}
	if msg.Model != "" {
		st.LastModel = msg.Model
	}
	if msg.Usage == nil {
		return model.Event{}, false, nil
	}

	u := msg.Usage
	var cache5m, cache1h int64
	if u.CacheCreation != nil {
		cache5m = u.CacheCreation.Ephemeral5mInputTokens
		cache1h = u.CacheCreation.Ephemeral1hInputTokens
	} else if u.CacheCreationInputTokens > 0 {
		cache5m = u.CacheCreationInputTokens
	}

	ev.Role = model.RoleAssistant
	ev.Model = msg.Model
	ev.MessageID = msg.ID
	ev.Tokens = model.TokenUsage{
		Input:      u.InputTokens,
		Output:     u.OutputTokens,
		CacheRead:  u.CacheReadInputTokens,
		CacheWrite: cache5m + cache1h,
	}
	ev.ContextTokens = ev.Tokens.Input + ev.Tokens.CacheRead + ev.Tokens.CacheWrite

	if entry.CostUSD != nil {
		ev.CostUSD = *entry.CostUSD
	} else {
		ev.CostUSD = config.CalculateCostAt(msg.Model, ts,
			u.InputTokens, u.OutputTokens, cache5m, cache1h, u.CacheReadInputTokens)
	}

	ev.TodoCount, ev.HasTodos = todosFromContent(msg.Content)
	return ev, true, nil
}

// isPromptContent reports whether user content holds typed text: either a
// plain string or an array with at least one text block.
func isPromptContent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return strings.TrimSpace(s) != ""
	case '[':
		var blocks []contentBlock
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return false
		}
		for _, b := range blocks {
			if b.Type == "text" {
				return true
			}
		}
	}
	return false
}

// todosFromContent finds the last TodoWrite tool call in assistant content.
func todosFromContent(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return 0, false
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return 0, false
	}

	count, found := 0, false
	for _, b := range blocks {
		if b.Type != "tool_use" || b.Name != "TodoWrite" {
			continue
		}
		var in struct {
			Todos []todoItem `json:"todos"`
		}
		if err := json.Unmarshal(b.Input, &in); err != nil {
			continue
		}
		count, found = pendingTodos(in.Todos), true
	}
	return count, found
}

// todosFromToolResult reads the newTodos snapshot of a TodoWrite result.
func todosFromToolResult(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return 0, false
	}
	var res struct {
		NewTodos *[]todoItem `json:"newTodos"`
	}
	if err := json.Unmarshal(raw, &res); err != nil || res.NewTodos == nil {
		return 0, false
	}
	return pendingTodos(*res.NewTodos), true
}

func pendingTodos(items []todoItem) int {
	n := 0
	for _, it := range items {
		if it.Status != "completed" {
			n++
		}
	}
	return n
}

// typeKey is the byte sequence for a JSON key named "type" (with quotes).
var typeKey = []byte(`"type"`)

// extractTopLevelType finds the top-level "type" field in a JSONL line.
// Tracks brace depth and string boundaries so nested "type" keys are ignored.
// Early-exits once found (~400 bytes in), making cost O(1) vs line length.
func extractTopLevelType(line []byte) string {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				val, isKey := classifyType(line, i+len(typeKey))
				if isKey {
					return val // found the "type" key; done regardless of value
				}
				// "type" appeared as a value, not a key. Continue scanning.
			}
			i = skipJSONString(line, i)
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			i++
		}
	}
	return ""
}

// classifyType checks whether pos follows a JSON key (expects : then value).
// Returns the type value and whether this was a valid key:value pair.
// isKey=false means "type" appeared as a value, not a key; caller should continue.
func classifyType(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false // no colon; this was a value, not a key
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true // key with non-string value (null, number, etc.)
	}
	i++ // past opening quote

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 20 {
		return "", true
	}
	v := string(line[i : i+end])
	switch v {
	case "assistant", "user", "system":
		return v, true
	}
	return "", true // valid key but irrelevant type (e.g. "progress", "summary")
}

// skipJSONString advances past a JSON string starting at the opening quote.
//
//nolint:gosec // manual bounds checking throughout
func skipJSONString(line []byte, i int) int {
	i++ // skip opening quote
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}

// extractCwdBytes extracts the cwd field via byte scanning.
func extractCwdBytes(line []byte) string {
	for _, pat := range [][]byte{patCwd1, patCwd2} {
		idx := bytes.Index(line, pat)
		if idx < 0 {
			continue
		}
		start := idx + len(pat)
		end := bytes.IndexByte(line[start:], '"')
		if end < 0 || end > 1024 {
			continue
		}
		return string(line[start : start+end])
	}
	return ""
}
