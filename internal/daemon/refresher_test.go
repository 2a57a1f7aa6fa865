package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"
	"github.com/theirongolddev/ccmeter/internal/pipeline"
)

type fakeSource struct {
	delay time.Duration

	mu   sync.Mutex
	errs []error

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeSource) Refresh(ctx context.Context) (pipeline.IngestStats, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return pipeline.IngestStats{}, err
	}
	return pipeline.IngestStats{Files: 1}, nil
}

func (f *fakeSource) Stats(p model.Period, now time.Time) model.UsageStats {
	st := model.UsageStats{Period: p, LastUpdated: now, TotalTokens: int64(f.calls.Load())}
	st.WeeklyUsage.DaysUntilReset = 3
	return st
}

func startRefresher(t *testing.T, r *Refresher) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return done
}

func TestRefresher_SummaryUsesLatestWeek(t *testing.T) {
	src := &fakeSource{}
	r := NewRefresher(src, DefaultRetryPolicy)
	startRefresher(t, r)
	ctx := context.Background()

	// No snapshot yet: the first summary runs a pass.
	sum, err := r.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.DaysUntilReset != 3 || src.calls.Load() != 1 {
		t.Fatalf("days = %d after %d passes, want 3 after 1", sum.DaysUntilReset, src.calls.Load())
	}

	for range 3 {
		if _, err := r.Summary(ctx); err != nil {
			t.Fatalf("Summary: %v", err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("passes = %d, want 1; cached summaries should not ingest", n)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := (RetryPolicy{BaseDelay: time.Second}).Delay(3); got != time.Second {
		t.Errorf("Delay without multiplier = %v, want 1s", got)
	}
}

func TestRefresher_UsageRunsPass(t *testing.T) {
	src := &fakeSource{}
	r := NewRefresher(src, DefaultRetryPolicy)
	startRefresher(t, r)

	stats, err := r.Usage(context.Background(), model.PeriodToday)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if stats.Period != model.PeriodToday {
		t.Errorf("Period = %s, want today", stats.Period)
	}
	if _, ok := r.Latest(model.PeriodToday); !ok {
		t.Error("Latest(today) missing after a pass")
	}
	if _, ok := r.Latest(model.PeriodWeek); !ok {
		t.Error("Latest(week) missing; every pass refreshes the week snapshot")
	}
	if info := r.Info(); info.Passes != 1 || info.Ingest.Files != 1 {
		t.Errorf("Info = %+v, want 1 pass", info)
	}
}

func TestRefresher_NoConcurrentPasses(t *testing.T) {
	src := &fakeSource{delay: 5 * time.Millisecond}
	r := NewRefresher(src, DefaultRetryPolicy)
	startRefresher(t, r)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Trigger()
			if _, err := r.Usage(context.Background(), model.PeriodWeek); err != nil {
				t.Errorf("Usage %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if m := src.maxActive.Load(); m != 1 {
		t.Errorf("max concurrent passes = %d, want 1", m)
	}
	if c := src.calls.Load(); c > 21 {
		t.Errorf("passes = %d, want queued work coalesced", c)
	}
}

func TestRefresher_TriggerNeverBlocks(t *testing.T) {
	r := NewRefresher(&fakeSource{}, DefaultRetryPolicy)
	done := make(chan struct{})
	go func() {
		for range 100 {
			r.Trigger()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked without a running worker")
	}
}

func TestRefresher_RetriesTransientFailure(t *testing.T) {
	src := &fakeSource{errs: []error{errors.New("disk hiccup")}}
	r := NewRefresher(src, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2})
	startRefresher(t, r)

	if _, err := r.Usage(context.Background(), model.PeriodAll); err != nil {
		t.Fatalf("Usage after retry: %v", err)
	}
	if c := src.calls.Load(); c != 2 {
		t.Errorf("Refresh calls = %d, want 2", c)
	}
}

func TestRefresher_CapacityIsFatal(t *testing.T) {
	capErr := fmt.Errorf("%w: too many", pipeline.ErrIndexCapacity)
	src := &fakeSource{errs: []error{capErr, capErr, capErr}}
	r := NewRefresher(src, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})
	done := startRefresher(t, r)

	_, err := r.Usage(context.Background(), model.PeriodWeek)
	if !errors.Is(err, pipeline.ErrIndexCapacity) {
		t.Fatalf("Usage error = %v, want ErrIndexCapacity", err)
	}
	select {
	case runErr := <-done:
		if !errors.Is(runErr, pipeline.ErrIndexCapacity) {
			t.Errorf("Run returned %v, want ErrIndexCapacity", runErr)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after a capacity failure")
	}
	if c := src.calls.Load(); c != 2 {
		t.Errorf("Refresh calls = %d, want 2 (MaxAttempts)", c)
	}
}

func TestRefresher_UsageHonorsContext(t *testing.T) {
	r := NewRefresher(&fakeSource{}, DefaultRetryPolicy)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Usage(ctx, model.PeriodWeek); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Usage without worker = %v, want deadline exceeded", err)
	}
}

func TestRefresher_StoreKeepsNewestGeneration(t *testing.T) {
	r := NewRefresher(&fakeSource{}, DefaultRetryPolicy)
	r.store(2, model.PeriodWeek, model.UsageStats{TotalTokens: 2})
	r.store(1, model.PeriodWeek, model.UsageStats{TotalTokens: 1})
	got, _ := r.Latest(model.PeriodWeek)
	if got.TotalTokens != 2 {
		t.Errorf("Latest = %d, want 2 from the newer generation", got.TotalTokens)
	}
}
