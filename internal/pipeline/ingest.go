package pipeline

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/theirongolddev/ccmeter/internal/model"
	"github.com/theirongolddev/ccmeter/internal/source"
)

// ProgressFunc is called during a pass to report progress.
// current is the number of files read so far, total is the total count.
type ProgressFunc func(current, total int)

type fileResult struct {
	file source.DiscoveredFile
	res  source.ReadResult
	err  error
}

// readFiles reads every file from its cursor with a bounded worker pool.
// Workers only read; cursors is not modified here and results come back in
// the order of files.
func readFiles(ctx context.Context, files []source.DiscoveredFile, cursors map[string]model.FileCursor, progressFn ProgressFunc) []fileResult {
	results := make([]fileResult, len(files))
	if len(files) == 0 {
		return results
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	for i := range files {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	var processed atomic.Int64

	wg.Add(numWorkers)
	for range numWorkers {
		go func() {
			defer wg.Done()
			for idx := range work {
				f := files[idx]
				results[idx].file = f
				if err := ctx.Err(); err != nil {
					results[idx].err = err
					continue
				}
				results[idx].res, results[idx].err = source.ReadWithRetry(f.Path, cursors[f.Path])
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n), len(files))
				}
			}
		}()
	}

	wg.Wait()
	return results
}

// projectedLen is the index size after applying results.
func projectedLen(idx *eventIndex, results []fileResult) int {
	n := idx.Len()
	for _, r := range results {
		if r.err != nil {
			continue
		}
		if r.res.Truncated {
			n -= idx.FileLen(r.file.Path)
		}
		n += len(r.res.Events)
	}
	return n
}
