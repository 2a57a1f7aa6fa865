// Package store persists the ingest cursor table and accepted events in
// SQLite so a restarted process can resume incrementally.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Index is the on-disk copy of the ingest state.
type Index struct {
	db *sql.DB
}

// Open opens or creates the index database at the given path.
func Open(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the index database.
func (x *Index) Close() error {
	return x.db.Close()
}

// Batch is the set of changes produced by one ingest pass. It is applied
// atomically so cursors never run ahead of the events they cover.
type Batch struct {
	Truncated []string
	Events    []model.Event
	Cursors   []model.FileCursor
}

// Empty reports whether b has nothing to write.
func (b Batch) Empty() bool {
	return len(b.Truncated) == 0 && len(b.Events) == 0 && len(b.Cursors) == 0
}

// Merge folds a later batch into b. A later truncation drops b's pending
// events for that file; later cursors replace earlier ones.
func (b *Batch) Merge(next Batch) {
	if len(next.Truncated) > 0 {
		cut := make(map[string]struct{}, len(next.Truncated))
		for _, p := range next.Truncated {
			cut[p] = struct{}{}
		}
		kept := b.Events[:0]
		for _, ev := range b.Events {
			if _, ok := cut[ev.Ref.Path]; !ok {
				kept = append(kept, ev)
			}
		}
		b.Events = kept
		b.Truncated = append(b.Truncated, next.Truncated...)
	}
	b.Events = append(b.Events, next.Events...)

	pos := make(map[string]int, len(b.Cursors))
	for i, c := range b.Cursors {
		pos[c.Path] = i
	}
	for _, c := range next.Cursors {
		if i, ok := pos[c.Path]; ok {
			b.Cursors[i] = c
			continue
		}
		pos[c.Path] = len(b.Cursors)
		b.Cursors = append(b.Cursors, c)
	}
}

// Commit writes a batch in one transaction.
func (x *Index) Commit(b Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range b.Truncated {
		if _, err := tx.Exec("DELETE FROM events WHERE file_path = ?", p); err != nil {
			return fmt.Errorf("dropping events of %s: %w", p, err)
		}
	}

	if len(b.Events) > 0 {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO events
			(file_path, byte_offset, ts_ns, session_id, directory, role, model, message_id,
			 input_tokens, output_tokens, cache_read_tokens, cache_write_tokens,
			 cost_usd, todo_count, context_tokens, is_prompt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, ev := range b.Events {
			var todo sql.NullInt64
			if ev.HasTodos {
				todo = sql.NullInt64{Int64: int64(ev.TodoCount), Valid: true}
			}
			isPrompt := 0
			if ev.IsPrompt {
				isPrompt = 1
			}
			_, err := stmt.Exec(
				ev.Ref.Path, ev.Ref.Offset, ev.Timestamp.UnixNano(), ev.SessionID, ev.Directory,
				string(ev.Role), ev.Model, ev.MessageID,
				ev.Tokens.Input, ev.Tokens.Output, ev.Tokens.CacheRead, ev.Tokens.CacheWrite,
				ev.CostUSD, todo, ev.ContextTokens, isPrompt,
			)
			if err != nil {
				return fmt.Errorf("inserting event %s@%d: %w", ev.Ref.Path, ev.Ref.Offset, err)
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range b.Cursors {
		_, err := tx.Exec(`INSERT OR REPLACE INTO file_cursors
			(file_path, byte_offset, last_model, last_dir, updated_at)
			VALUES (?, ?, ?, ?, ?)`, c.Path, c.Offset, c.LastModel, c.LastDir, now)
		if err != nil {
			return fmt.Errorf("saving cursor %s: %w", c.Path, err)
		}
	}

	return tx.Commit()
}

// LoadCursors returns the saved cursor for every tracked file.
func (x *Index) LoadCursors() (map[string]model.FileCursor, error) {
	rows, err := x.db.Query("SELECT file_path, byte_offset, last_model, last_dir FROM file_cursors")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]model.FileCursor)
	for rows.Next() {
		var c model.FileCursor
		if err := rows.Scan(&c.Path, &c.Offset, &c.LastModel, &c.LastDir); err != nil {
			return nil, err
		}
		out[c.Path] = c
	}
	return out, rows.Err()
}

// LoadEvents returns every stored event ordered by file and offset.
func (x *Index) LoadEvents() ([]model.Event, error) {
	rows, err := x.db.Query(`SELECT
		file_path, byte_offset, ts_ns, session_id, directory, role, model, message_id,
		input_tokens, output_tokens, cache_read_tokens, cache_write_tokens,
		cost_usd, todo_count, context_tokens, is_prompt
		FROM events ORDER BY file_path, byte_offset`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var (
			ev       model.Event
			tsNs     int64
			role     string
			todo     sql.NullInt64
			isPrompt int
		)
		err := rows.Scan(
			&ev.Ref.Path, &ev.Ref.Offset, &tsNs, &ev.SessionID, &ev.Directory, &role, &ev.Model, &ev.MessageID,
			&ev.Tokens.Input, &ev.Tokens.Output, &ev.Tokens.CacheRead, &ev.Tokens.CacheWrite,
			&ev.CostUSD, &todo, &ev.ContextTokens, &isPrompt,
		)
		if err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, tsNs).UTC()
		ev.Role = model.Role(role)
		ev.IsPrompt = isPrompt != 0
		if todo.Valid {
			ev.HasTodos = true
			ev.TodoCount = int(todo.Int64)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// EventCount returns the number of stored events.
func (x *Index) EventCount() (int, error) {
	var n int
	err := x.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// Reset drops all stored state, forcing the next pass to re-read every file.
func (x *Index) Reset() error {
	if _, err := x.db.Exec("DELETE FROM events; DELETE FROM file_cursors;"); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	return nil
}

// DefaultDir returns the platform-appropriate cache directory.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ccmeter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "ccmeter")
}

// DefaultPath returns the full path to the index database.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "index.db")
}
