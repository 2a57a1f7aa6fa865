package daemon

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/theirongolddev/ccmeter/internal/logger"
	"github.com/theirongolddev/ccmeter/internal/model"
	"github.com/theirongolddev/ccmeter/internal/pipeline"
)

// Source is the aggregation state a Refresher owns. *pipeline.Engine
// satisfies it.
type Source interface {
	Refresh(ctx context.Context) (pipeline.IngestStats, error)
	Stats(p model.Period, now time.Time) model.UsageStats
}

// RetryPolicy governs re-running a failed pass.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy tries three times, waiting 1s then 2s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1)))
}

type result struct {
	stats model.UsageStats
	err   error
}

type request struct {
	period model.Period
	reply  chan result
}

type entry struct {
	gen   uint64
	stats model.UsageStats
}

// PassInfo describes the most recent pass.
type PassInfo struct {
	Generation uint64               `json:"generation"`
	Passes     int64                `json:"passes"`
	LastPassAt time.Time            `json:"last_pass_at"`
	Ingest     pipeline.IngestStats `json:"ingest"`
	LastError  string               `json:"last_error,omitempty"`
}

// Refresher is the single owner of a Source. Triggers and queries are
// queued to one worker goroutine, so passes never overlap.
type Refresher struct {
	src   Source
	retry RetryPolicy
	now   func() time.Time

	trigger  chan struct{}
	requests chan request

	// onPass is called from the worker with the week snapshot of every
	// successful pass.
	onPass func(model.UsageStats)

	mu     sync.RWMutex
	gen    uint64
	latest map[model.Period]entry
	info   PassInfo
}

// NewRefresher returns a refresher over src. Call Run to start the worker.
func NewRefresher(src Source, retry RetryPolicy) *Refresher {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Refresher{
		src:      src,
		retry:    retry,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		requests: make(chan request),
		latest:   make(map[model.Period]entry),
	}
}

// OnPass registers a hook run after each successful pass. Must be set
// before Run.
func (r *Refresher) OnPass(fn func(model.UsageStats)) { r.onPass = fn }

// Trigger asks for a pass. It never blocks; triggers arriving while one is
// already queued are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Usage queues a query and waits for the pass that serves it.
func (r *Refresher) Usage(ctx context.Context, p model.Period) (model.UsageStats, error) {
	req := request{period: p, reply: make(chan result, 1)}
	select {
	case r.requests <- req:
	case <-ctx.Done():
		return model.UsageStats{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.stats, res.err
	case <-ctx.Done():
		return model.UsageStats{}, ctx.Err()
	}
}

// Summary returns the weekly figures from the newest week snapshot. A pass
// is run only when no snapshot exists yet.
func (r *Refresher) Summary(ctx context.Context) (model.Summary, error) {
	stats, ok := r.Latest(model.PeriodWeek)
	if !ok {
		var err error
		if stats, err = r.Usage(ctx, model.PeriodWeek); err != nil {
			return model.Summary{}, err
		}
	}
	return model.Summary{
		WeekUsagePercent: stats.Quota.WeekUsagePercent,
		DaysUntilReset:   stats.WeeklyUsage.DaysUntilReset,
	}, nil
}

// Latest returns the newest completed snapshot for p without running a pass.
func (r *Refresher) Latest(p model.Period) (model.UsageStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.latest[p]
	return e.stats, ok
}

// Info returns bookkeeping about the most recent pass.
func (r *Refresher) Info() PassInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

// Run serves triggers and queries until ctx is canceled. It returns early
// only when a pass fails with pipeline.ErrIndexCapacity after all retries.
func (r *Refresher) Run(ctx context.Context) error {
	for {
		var reqs []request
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.trigger:
		case req := <-r.requests:
			reqs = append(reqs, req)
		}
		reqs = r.drain(reqs)

		if err := r.pass(ctx, reqs); err != nil {
			return err
		}
	}
}

// drain collects queued requests and swallows a pending trigger; one pass
// answers all of them.
func (r *Refresher) drain(reqs []request) []request {
	for {
		select {
		case req := <-r.requests:
			reqs = append(reqs, req)
		case <-r.trigger:
		default:
			return reqs
		}
	}
}

func (r *Refresher) pass(ctx context.Context, reqs []request) error {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	ingest, err := r.refreshWithRetry(ctx)
	now := r.now()

	r.mu.Lock()
	r.info.Generation = gen
	r.info.Passes++
	r.info.LastPassAt = now
	if err != nil {
		r.info.LastError = err.Error()
	} else {
		r.info.LastError = ""
		r.info.Ingest = ingest
	}
	r.mu.Unlock()

	if err != nil {
		for _, req := range reqs {
			req.reply <- result{err: err}
		}
		if errors.Is(err, pipeline.ErrIndexCapacity) {
			logger.Error("event index capacity exceeded, stopping refresher", "error", err)
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("refresh pass failed", "error", err)
		return nil
	}

	periods := []model.Period{model.PeriodWeek}
	for _, req := range reqs {
		periods = append(periods, req.period)
	}
	computed := make(map[model.Period]model.UsageStats, len(periods))
	for _, p := range periods {
		if _, ok := computed[p]; ok {
			continue
		}
		stats := r.src.Stats(p, now)
		computed[p] = stats
		r.store(gen, p, stats)
	}

	for _, req := range reqs {
		req.reply <- result{stats: computed[req.period]}
	}
	if r.onPass != nil {
		r.onPass(computed[model.PeriodWeek])
	}
	return nil
}

func (r *Refresher) refreshWithRetry(ctx context.Context) (pipeline.IngestStats, error) {
	for attempt := 1; ; attempt++ {
		ingest, err := r.src.Refresh(ctx)
		if err == nil {
			return ingest, nil
		}
		if ctx.Err() != nil || attempt >= r.retry.MaxAttempts {
			return ingest, err
		}

		delay := r.retry.Delay(attempt)
		logger.Warn("refresh failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ingest, ctx.Err()
		case <-t.C:
		}
	}
}

// store keeps stats unless a newer generation already landed.
func (r *Refresher) store(gen uint64, p model.Period, stats model.UsageStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.latest[p]; ok && cur.gen > gen {
		return
	}
	r.latest[p] = entry{gen: gen, stats: stats}
}
