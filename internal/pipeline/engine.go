// Package pipeline turns Claude Code conversation logs into usage snapshots:
// incremental ingest, session folding and the period, quota, weekly and
// heatmap aggregates.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/logger"
	"github.com/theirongolddev/ccmeter/internal/model"
	"github.com/theirongolddev/ccmeter/internal/source"
	"github.com/theirongolddev/ccmeter/internal/store"
)

// Options configures an Engine.
type Options struct {
	Roots []string
	Quota QuotaSettings

	// ContextWindow maps a model id to its context capacity in tokens.
	// Defaults to config.DefaultContextWindow for every model.
	ContextWindow func(model string) int64

	// MaxEvents bounds the in-memory index. Zero means unlimited.
	MaxEvents int

	// Store, when set, persists cursors and events between runs.
	Store *store.Index

	Now      func() time.Time
	Progress ProgressFunc
}

// IngestStats describes one ingest pass.
type IngestStats struct {
	Files       int           `json:"files"`
	NewEvents   int           `json:"new_events"`
	ParseErrors int           `json:"parse_errors"`
	FileErrors  int           `json:"file_errors"`
	Truncated   int           `json:"truncated"`
	StoreErrors int           `json:"store_errors"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Engine owns the cursor table, the event index and the session map. It is
// not safe for concurrent use; the daemon serializes access through a single
// owner goroutine.
type Engine struct {
	opts Options

	cursors  map[string]model.FileCursor
	index    *eventIndex
	resolver *Resolver

	// pending holds writes that failed to commit; they ride along with the
	// next pass.
	pending store.Batch

	effective []model.Event
	dirty     bool
}

// New returns an empty engine.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ContextWindow == nil {
		opts.ContextWindow = func(string) int64 { return config.DefaultContextWindow }
	}
	return &Engine{
		opts:     opts,
		cursors:  make(map[string]model.FileCursor),
		index:    newEventIndex(),
		resolver: NewResolver(opts.ContextWindow),
		dirty:    true,
	}
}

// Restore loads cursors and events from the store, if one is configured.
func (e *Engine) Restore(ctx context.Context) error {
	if e.opts.Store == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cursors, err := e.opts.Store.LoadCursors()
	if err != nil {
		return fmt.Errorf("loading cursors: %w", err)
	}
	events, err := e.opts.Store.LoadEvents()
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}
	if e.opts.MaxEvents > 0 && len(events) > e.opts.MaxEvents {
		return fmt.Errorf("%w: stored index holds %d events (max %d)", ErrIndexCapacity, len(events), e.opts.MaxEvents)
	}

	slices.SortFunc(events, func(a, b model.Event) int { return a.Key().Compare(b.Key()) })
	for _, ev := range events {
		e.index.Add(ev)
	}
	for id := range e.index.bySession {
		e.resolver.Rebuild(id, e.index.SessionEvents(id))
	}
	e.cursors = cursors
	e.dirty = true

	logger.Debug("restored index", "events", len(events), "files", len(cursors), "sessions", e.resolver.Len())
	return nil
}

// Refresh runs one incremental ingest pass over the configured roots. The
// only error that fails a pass is ErrIndexCapacity (or ctx cancellation);
// unreadable files and malformed lines are counted and skipped.
func (e *Engine) Refresh(ctx context.Context) (IngestStats, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return IngestStats{}, err
	}

	files := source.ScanRoots(e.opts.Roots)
	results := readFiles(ctx, files, e.cursors, e.opts.Progress)
	if err := ctx.Err(); err != nil {
		return IngestStats{}, err
	}

	stats := IngestStats{Files: len(files)}
	if n := projectedLen(e.index, results); e.opts.MaxEvents > 0 && n > e.opts.MaxEvents {
		return stats, fmt.Errorf("%w: pass would hold %d events (max %d)", ErrIndexCapacity, n, e.opts.MaxEvents)
	}

	var batch store.Batch
	rebuild := make(map[string]struct{})
	var fresh []model.Event

	for _, r := range results {
		path := r.file.Path
		if r.err != nil {
			stats.FileErrors++
			logger.Warn("skipping log file", "path", path, "error", r.err)
			continue
		}
		stats.ParseErrors += r.res.ParseErrors

		if r.res.Truncated {
			stats.Truncated++
			logger.Info("log file truncated, re-reading", "path", path)
			for _, id := range e.index.RemoveFile(path) {
				rebuild[id] = struct{}{}
			}
			batch.Truncated = append(batch.Truncated, path)
		}
		fresh = append(fresh, r.res.Events...)

		if r.res.Truncated || r.res.Cursor != e.cursors[path] {
			e.cursors[path] = r.res.Cursor
			batch.Cursors = append(batch.Cursors, r.res.Cursor)
		}
	}

	slices.SortFunc(fresh, func(a, b model.Event) int { return a.Key().Compare(b.Key()) })
	for _, ev := range fresh {
		fold, rb := e.index.Add(ev)
		if fold {
			e.resolver.Fold(ev)
		}
		for _, id := range rb {
			rebuild[id] = struct{}{}
		}
	}
	for id := range rebuild {
		e.resolver.Rebuild(id, e.index.SessionEvents(id))
	}

	batch.Events = fresh
	stats.NewEvents = len(fresh)
	if len(fresh) > 0 || len(rebuild) > 0 {
		e.dirty = true
	}

	if err := e.persist(batch); err != nil {
		stats.StoreErrors++
		logger.Warn("index commit failed, will retry next pass", "error", err)
	}

	stats.Elapsed = time.Since(start)
	logger.Debug("ingest pass",
		"files", stats.Files,
		"new_events", stats.NewEvents,
		"parse_errors", stats.ParseErrors,
		"file_errors", stats.FileErrors,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

func (e *Engine) persist(b store.Batch) error {
	if e.opts.Store == nil {
		return nil
	}
	e.pending.Merge(b)
	if e.pending.Empty() {
		return nil
	}
	if err := e.opts.Store.Commit(e.pending); err != nil {
		return err
	}
	e.pending = store.Batch{}
	return nil
}

// EventCount returns the number of events held in memory.
func (e *Engine) EventCount() int { return e.index.Len() }

func (e *Engine) events() []model.Event {
	if e.dirty {
		e.effective = e.index.Effective()
		e.dirty = false
	}
	return e.effective
}

// Stats assembles a snapshot for a named period from current state.
func (e *Engine) Stats(p model.Period, now time.Time) model.UsageStats {
	return e.stats(p, WindowFor(p, now), now)
}

// StatsRange assembles a snapshot for the explicit interval [from, to).
func (e *Engine) StatsRange(from, to, now time.Time) model.UsageStats {
	return e.stats(model.PeriodRange, model.Window{From: from, To: to}, now)
}

func (e *Engine) stats(p model.Period, w model.Window, now time.Time) model.UsageStats {
	evs := e.events()
	tt := aggregateTokens(evs, w)
	quota := estimateQuota(evs, e.opts.Quota, now)

	byDay := promptsByDay(evs, now.Location())
	weekly, weekPct := weeklyUsage(byDay, e.opts.Quota.Limits.WeeklyPrompts, now)
	quota.WeekUsagePercent = weekPct

	return model.UsageStats{
		Period:         p,
		TotalTokens:    tt.Tokens.Total(),
		Tokens:         tt.Tokens,
		TotalCostUSD:   model.FromNanoUSD(tt.CostNanos),
		ByModel:        tt.ByModel,
		SessionCount:   tt.Sessions,
		MessageCount:   tt.Messages,
		Quota:          quota,
		ActiveSessions: activeSessions(e.resolver.All(), now),
		DailyActivity:  dailyActivity(byDay, now),
		WeeklyUsage:    weekly,
		LastUpdated:    now,
	}
}

// Build refreshes and returns the snapshot for p, stamped with the
// completion time.
func (e *Engine) Build(ctx context.Context, p model.Period) (model.UsageStats, error) {
	if _, err := e.Refresh(ctx); err != nil {
		return model.UsageStats{}, err
	}
	return e.Stats(p, e.opts.Now()), nil
}

// Summary returns the weekly figures without the rest of the snapshot.
func (e *Engine) Summary(now time.Time) model.Summary {
	byDay := promptsByDay(e.events(), now.Location())
	wu, pct := weeklyUsage(byDay, e.opts.Quota.Limits.WeeklyPrompts, now)
	return model.Summary{WeekUsagePercent: pct, DaysUntilReset: wu.DaysUntilReset}
}

// Sessions returns every known session, most recently active first.
func (e *Engine) Sessions() []model.Session {
	all := e.resolver.All()
	sortSessions(all)
	return all
}

// ActiveSessions returns sessions active within the last 24 hours of now.
func (e *Engine) ActiveSessions(now time.Time) []model.ActiveSession {
	return activeSessions(e.resolver.All(), now)
}
