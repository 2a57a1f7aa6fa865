package source

import "encoding/json"

// RawEntry is the subset of a Claude Code JSONL line that ccmeter reads.
// Unrecognized fields are ignored.
type RawEntry struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	SessionID string      `json:"sessionId"`
	Cwd       string      `json:"cwd,omitempty"`
	CostUSD   *float64    `json:"costUSD,omitempty"`
	Message   *RawMessage `json:"message,omitempty"`

	// User lines carrying a tool result; TodoWrite results hold newTodos.
	ToolUseResult json.RawMessage `json:"toolUseResult,omitempty"`
}

// RawMessage is the message envelope. Content is either a string or an
// array of typed blocks.
type RawMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content,omitempty"`
	Usage   *RawUsage       `json:"usage,omitempty"`
}

// RawUsage holds token counts from the API response.
type RawUsage struct {
	InputTokens              int64          `json:"input_tokens"`
	OutputTokens             int64          `json:"output_tokens"`
	CacheCreationInputTokens int64          `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64          `json:"cache_read_input_tokens"`
	CacheCreation            *CacheCreation `json:"cache_creation,omitempty"`
}

// CacheCreation holds the breakdown of cache write tokens by TTL bucket.
type CacheCreation struct {
	Ephemeral5mInputTokens int64 `json:"ephemeral_5m_input_tokens"`
	Ephemeral1hInputTokens int64 `json:"ephemeral_1h_input_tokens"`
}

// contentBlock is one element of an array-valued message content.
type contentBlock struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type todoItem struct {
	Status string `json:"status"`
}

// DiscoveredFile is a JSONL file found under one of the log roots.
type DiscoveredFile struct {
	Path    string
	Root    string
	Project string // decoded display name of the project directory
	Size    int64
}
