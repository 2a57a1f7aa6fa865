// Package model defines domain types for ccmeter events, sessions and usage.
package model

import (
	"math"
	"strings"
	"time"
)

// Role is the author of a conversation event.
type Role string

// Event roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TokenUsage holds token counters for one event or an aggregate.
type TokenUsage struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheRead  int64 `json:"cache_read"`
	CacheWrite int64 `json:"cache_write"`
}

// Total returns the sum of all counters.
func (t TokenUsage) Total() int64 {
	return t.Input + t.Output + t.CacheRead + t.CacheWrite
}

// Add accumulates o into t.
func (t *TokenUsage) Add(o TokenUsage) {
	t.Input += o.Input
	t.Output += o.Output
	t.CacheRead += o.CacheRead
	t.CacheWrite += o.CacheWrite
}

// EventRef locates the log line an event was parsed from.
type EventRef struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
}

// OrderKey totally orders events: timestamp, then file path, then byte offset.
type OrderKey struct {
	Time   time.Time
	Path   string
	Offset int64
}

// IsZero reports whether k is unset.
func (k OrderKey) IsZero() bool {
	return k.Time.IsZero() && k.Path == "" && k.Offset == 0
}

// Less reports whether k sorts before o.
func (k OrderKey) Less(o OrderKey) bool {
	if !k.Time.Equal(o.Time) {
		return k.Time.Before(o.Time)
	}
	if k.Path != o.Path {
		return k.Path < o.Path
	}
	return k.Offset < o.Offset
}

// Compare returns -1, 0 or +1. Suitable for slices.SortFunc.
func (k OrderKey) Compare(o OrderKey) int {
	switch {
	case k.Less(o):
		return -1
	case o.Less(k):
		return 1
	default:
		return 0
	}
}

// Event is one accepted log line. Events are never mutated after parsing.
type Event struct {
	Timestamp time.Time  `json:"timestamp"`
	SessionID string     `json:"session_id"`
	Directory string     `json:"directory"`
	Role      Role       `json:"role"`
	Model     string     `json:"model,omitempty"`
	MessageID string     `json:"message_id,omitempty"`
	Tokens    TokenUsage `json:"tokens"`
	CostUSD   float64    `json:"cost_usd"`

	// HasTodos is set when the line carried a todo-list snapshot.
	HasTodos  bool `json:"has_todos"`
	TodoCount int  `json:"todo_count"`

	// ContextTokens is the context-window fill reported by an assistant turn.
	ContextTokens int64 `json:"context_tokens"`

	// IsPrompt marks user lines carrying typed text, as opposed to tool results.
	IsPrompt bool `json:"is_prompt"`

	Ref EventRef `json:"ref"`
}

// Key returns the event's position in the global ordering.
func (e Event) Key() OrderKey {
	return OrderKey{Time: e.Timestamp, Path: e.Ref.Path, Offset: e.Ref.Offset}
}

// FileCursor records how far a log file has been consumed.
type FileCursor struct {
	Path      string `json:"path"`
	Offset    int64  `json:"offset"`
	LastModel string `json:"last_model,omitempty"`
	LastDir   string `json:"last_dir,omitempty"`
}

// Session aggregates all events sharing a session id.
type Session struct {
	ID            string     `json:"session_id"`
	Directory     string     `json:"directory"`
	FirstActivity time.Time  `json:"first_activity"`
	LastActivity  time.Time  `json:"last_activity"`
	MessageCount  int        `json:"message_count"`
	Tokens        TokenUsage `json:"tokens"`
	CostUSD       float64    `json:"cost_usd"`
	Model         string     `json:"model"`

	ContextTokens           int64   `json:"context_tokens"`
	ContextRemainingPercent float64 `json:"context_remaining_percent"`
	TodoCount               int     `json:"todo_count"`

	// CostNanos accumulates cost in integer nano-dollars so folding order
	// never changes the total.
	CostNanos int64 `json:"-"`

	DirKey     OrderKey `json:"-"`
	ModelKey   OrderKey `json:"-"`
	ContextKey OrderKey `json:"-"`
	TodoKey    OrderKey `json:"-"`
}

// ShortID returns the first eight characters of the session id.
func (s Session) ShortID() string {
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// Project returns the last path component of the session directory.
func (s Session) Project() string {
	dir := strings.TrimRight(s.Directory, "/\\")
	if i := strings.LastIndexAny(dir, "/\\"); i >= 0 {
		return dir[i+1:]
	}
	return dir
}

// NanoUSD converts a dollar amount to integer nano-dollars.
func NanoUSD(usd float64) int64 {
	return int64(math.Round(usd * 1e9))
}

// FromNanoUSD converts nano-dollars back to dollars.
func FromNanoUSD(n int64) float64 {
	return float64(n) / 1e9
}
