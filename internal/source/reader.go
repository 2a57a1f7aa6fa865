package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/theirongolddev/ccmeter/internal/model"
)

// maxLineBytes caps a single line; longer lines are counted as malformed.
const maxLineBytes = 8 * 1024 * 1024

// ReadResult is the outcome of consuming one file from a cursor.
type ReadResult struct {
	Events      []model.Event
	Cursor      model.FileCursor
	ParseErrors int

	// Truncated is set when the file shrank below the cursor. The read
	// restarted at offset 0 and the caller must discard the file's old events.
	Truncated bool
}

// ReadFrom parses complete lines of path starting at cur.Offset. Only
// newline-terminated lines are consumed: a trailing partial line is left for
// the next pass and the returned cursor never moves past the last newline.
// The read is bounded by the file size observed at open time.
func ReadFrom(path string, cur model.FileCursor) (ReadResult, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from scanning configured roots
	if err != nil {
		return ReadResult{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ReadResult{}, fmt.Errorf("stat %s: %w", path, err)
	}

	res := ReadResult{Cursor: cur}
	res.Cursor.Path = path
	size := info.Size()
	if size < cur.Offset {
		res.Truncated = true
		res.Cursor = model.FileCursor{Path: path}
	}
	if size == res.Cursor.Offset {
		return res, nil
	}

	section := io.NewSectionReader(f, res.Cursor.Offset, size-res.Cursor.Offset)
	r := bufio.NewReaderSize(section, 256*1024)
	st := LineState{LastModel: res.Cursor.LastModel, LastDir: res.Cursor.LastDir}
	offset := res.Cursor.Offset

	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			break // anything left in line is an unterminated tail
		}
		if err != nil {
			return ReadResult{}, fmt.Errorf("reading %s: %w", path, err)
		}

		start := offset
		offset += int64(len(line))

		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if len(line) > maxLineBytes {
			res.ParseErrors++
			continue
		}

		ev, ok, perr := ParseLine(line, &st, model.EventRef{Path: path, Offset: start})
		if perr != nil {
			res.ParseErrors++
			continue
		}
		if ok {
			res.Events = append(res.Events, ev)
		}
	}

	res.Cursor.Offset = offset
	res.Cursor.LastModel = st.LastModel
	res.Cursor.LastDir = st.LastDir
	return res, nil
}

// ReadWithRetry calls ReadFrom and retries once on failure. A second failure
// is returned to the caller, which should leave the cursor untouched.
func ReadWithRetry(path string, cur model.FileCursor) (ReadResult, error) {
	res, err := ReadFrom(path, cur)
	if err == nil {
		return res, nil
	}
	return ReadFrom(path, cur)
}
