// Package daemon provides the long-running background usage monitor service.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/ccmeter/internal/logger"
	"github.com/theirongolddev/ccmeter/internal/model"
	"github.com/theirongolddev/ccmeter/internal/pipeline"
	"github.com/theirongolddev/ccmeter/internal/watch"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Roots           []string
	Interval        time.Duration
	Debounce        time.Duration
	Addr            string
	EventsBuffer    int
	NotifyThreshold float64
	Retry           RetryPolicy
	Watch           bool
}

// Snapshot is a compact usage state for status/event payloads.
type Snapshot struct {
	At               time.Time `json:"at"`
	Sessions         int       `json:"sessions"`
	ActiveSessions   int       `json:"active_sessions"`
	Tokens           int64     `json:"tokens"`
	CostUSD          float64   `json:"cost_usd"`
	MessagesInWindow int       `json:"messages_in_window"`
	UsagePercent     float64   `json:"usage_percent"`
	WeekUsagePercent float64   `json:"week_usage_percent"`
	DaysUntilReset   int       `json:"days_until_reset"`
}

// Delta captures snapshot deltas between passes.
type Delta struct {
	Tokens           int64   `json:"tokens"`
	CostUSD          float64 `json:"cost_usd"`
	MessagesInWindow int     `json:"messages_in_window"`
	UsagePercent     float64 `json:"usage_percent"`
	WeekUsagePercent float64 `json:"week_usage_percent"`
}

func (d Delta) isZero() bool {
	return d.Tokens == 0 &&
		d.CostUSD == 0 &&
		d.MessagesInWindow == 0 &&
		d.UsagePercent == 0 &&
		d.WeekUsagePercent == 0
}

// Event is emitted whenever usage snapshot updates.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time            `json:"started_at"`
	LastPollAt      time.Time            `json:"last_poll_at"`
	PollIntervalSec int                  `json:"poll_interval_sec"`
	PollCount       int64                `json:"poll_count"`
	Roots           []string             `json:"roots"`
	Summary         Snapshot             `json:"summary"`
	Ingest          pipeline.IngestStats `json:"ingest"`
	LastError       string               `json:"last_error,omitempty"`
	EventCount      int                  `json:"event_count"`
	SubscriberCount int                  `json:"subscriber_count"`
}

// Service wires a Refresher to a ticker, a file watcher and the HTTP API.
type Service struct {
	cfg       Config
	refresher *Refresher
	notifier  Notifier
	alert     *thresholdAlert

	mu          sync.RWMutex
	startedAt   time.Time
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon service that refreshes src.
func New(cfg Config, src Source) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 10 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryPolicy
	}

	s := &Service{
		cfg:       cfg,
		refresher: NewRefresher(src, cfg.Retry),
		notifier:  desktopNotifier{},
		alert:     newThresholdAlert(cfg.NotifyThreshold),
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
	s.refresher.OnPass(s.observe)
	return s
}

// Refresher exposes the service's refresh coordinator.
func (s *Service) Refresher() *Refresher { return s.refresher }

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/usage", s.handleUsage)
	mux.HandleFunc("/v1/summary", s.handleSummary)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

// Run starts the refresher, triggers and HTTP endpoints until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("daemon http server: %w", err)
		}
	}()
	go func() {
		if err := s.refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("refresher: %w", err)
		}
	}()

	if s.cfg.Watch {
		w, err := watch.New(s.cfg.Roots, s.cfg.Debounce, s.refresher.Trigger)
		if err != nil {
			logger.Warn("file watcher unavailable, polling only", "error", err)
		} else {
			go func() { _ = w.Run(ctx) }()
		}
	}

	// Seed initial snapshot so status is useful immediately.
	s.refresher.Trigger()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.refresher.Trigger()
		case err := <-errCh:
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = server.Shutdown(shutdownCtx)
			return err
		}
	}
}

// observe runs on the refresher worker after every successful pass.
func (s *Service) observe(stats model.UsageStats) {
	snap := snapshotFromStats(stats)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot
	s.hasSnapshot = true
	s.snapshot = snap

	if !prevExists {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "snapshot", Timestamp: snap.At, Snapshot: snap}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "usage_delta", Timestamp: snap.At, Snapshot: snap, Delta: delta}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
	if s.alert.check(stats.Quota.UsagePercent) {
		notifyQuota(s.notifier, stats.Quota)
	}
}

func snapshotFromStats(stats model.UsageStats) Snapshot {
	return Snapshot{
		At:               stats.LastUpdated,
		Sessions:         stats.SessionCount,
		ActiveSessions:   len(stats.ActiveSessions),
		Tokens:           stats.TotalTokens,
		CostUSD:          stats.TotalCostUSD,
		MessagesInWindow: stats.Quota.MessagesInWindow,
		UsagePercent:     stats.Quota.UsagePercent,
		WeekUsagePercent: stats.Quota.WeekUsagePercent,
		DaysUntilReset:   stats.WeeklyUsage.DaysUntilReset,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Tokens:           curr.Tokens - prev.Tokens,
		CostUSD:          curr.CostUSD - prev.CostUSD,
		MessagesInWindow: curr.MessagesInWindow - prev.MessagesInWindow,
		UsagePercent:     curr.UsagePercent - prev.UsagePercent,
		WeekUsagePercent: curr.WeekUsagePercent - prev.WeekUsagePercent,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	info := s.refresher.Info()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      info.LastPassAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       info.Passes,
		Roots:           s.cfg.Roots,
		Summary:         s.snapshot,
		Ingest:          info.Ingest,
		LastError:       info.LastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleUsage(w http.ResponseWriter, r *http.Request) {
	p, err := model.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.refresher.Usage(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.refresher.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
