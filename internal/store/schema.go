package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS file_cursors (
    file_path            TEXT PRIMARY KEY,
    byte_offset          INTEGER NOT NULL,
    last_model           TEXT NOT NULL DEFAULT '',
    last_dir             TEXT NOT NULL DEFAULT '',
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    file_path            TEXT NOT NULL,
    byte_offset          INTEGER NOT NULL,
    ts_ns                INTEGER NOT NULL,
    session_id           TEXT NOT NULL,
    directory            TEXT NOT NULL DEFAULT '',
    role                 TEXT NOT NULL,
    model                TEXT NOT NULL DEFAULT '',
    message_id           TEXT NOT NULL DEFAULT '',
    input_tokens         INTEGER NOT NULL DEFAULT 0,
    output_tokens        INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens    INTEGER NOT NULL DEFAULT 0,
    cache_write_tokens   INTEGER NOT NULL DEFAULT 0,
    cost_usd             REAL NOT NULL DEFAULT 0,
    todo_count           INTEGER,
    context_tokens       INTEGER NOT NULL DEFAULT 0,
    is_prompt            INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (file_path, byte_offset)
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ns);
`
