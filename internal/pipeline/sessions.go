package pipeline

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

// Resolver maintains session id -> Session. Every reading that can change
// over a session's life (directory, model, context fill, todo count) is
// replaced only by an event with a greater order key, so folding is
// independent of the order events arrive in.
type Resolver struct {
	sessions map[string]*model.Session
	capacity func(model string) int64
}

// NewResolver returns an empty resolver. capacity maps a model id to its
// context window size in tokens.
func NewResolver(capacity func(string) int64) *Resolver {
	return &Resolver{
		sessions: make(map[string]*model.Session),
		capacity: capacity,
	}
}

// Len returns the number of known sessions.
func (r *Resolver) Len() int { return len(r.sessions) }

// Get returns a copy of one session.
func (r *Resolver) Get(id string) (model.Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

// All returns copies of every session in no particular order.
func (r *Resolver) All() []model.Session {
	out := make([]model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// Fold applies one event to its session, creating the session if needed.
func (r *Resolver) Fold(ev model.Event) {
	s := r.sessions[ev.SessionID]
	if s == nil {
		s = &model.Session{ID: ev.SessionID}
		r.sessions[ev.SessionID] = s
	}
	foldEvent(s, ev, r.capacity)
}

// Rebuild replaces a session with a replay of events. An empty list removes
// the session.
func (r *Resolver) Rebuild(id string, events []model.Event) {
	if len(events) == 0 {
		delete(r.sessions, id)
		return
	}
	s := &model.Session{ID: id}
	for _, ev := range events {
		foldEvent(s, ev, r.capacity)
	}
	r.sessions[id] = s
}

func foldEvent(s *model.Session, ev model.Event, capacity func(string) int64) {
	key := ev.Key()

	if s.FirstActivity.IsZero() || ev.Timestamp.Before(s.FirstActivity) {
		s.FirstActivity = ev.Timestamp
	}
	if ev.Timestamp.After(s.LastActivity) {
		s.LastActivity = ev.Timestamp
	}
	s.MessageCount++
	s.Tokens.Add(ev.Tokens)
	s.CostNanos += model.NanoUSD(ev.CostUSD)
	s.CostUSD = model.FromNanoUSD(s.CostNanos)

	if ev.Directory != "" && s.DirKey.Less(key) {
		s.Directory = ev.Directory
		s.DirKey = key
	}
	if ev.Role == model.RoleAssistant && ev.Model != "" && s.ModelKey.Less(key) {
		s.Model = ev.Model
		s.ModelKey = key
	}
	if ev.ContextTokens > 0 && s.ContextKey.Less(key) {
		s.ContextTokens = ev.ContextTokens
		s.ContextKey = key
		s.ContextRemainingPercent = remainingPercent(ev.ContextTokens, capacity(ev.Model))
	}
	if ev.HasTodos && s.TodoKey.Less(key) {
		s.TodoCount = ev.TodoCount
		s.TodoKey = key
	}
}

func remainingPercent(used, capacity int64) float64 {
	if capacity <= 0 {
		return 0
	}
	p := 100 * (1 - float64(used)/float64(capacity))
	if p < 0 {
		return 0
	}
	return p
}

// ActiveWindow is how recently a session must have been active to be listed.
const ActiveWindow = 24 * time.Hour

// activeSessions returns sessions with activity in the last 24 hours, most
// recent first.
func activeSessions(sessions []model.Session, now time.Time) []model.ActiveSession {
	cutoff := now.Add(-ActiveWindow)
	active := lo.Filter(sessions, func(s model.Session, _ int) bool {
		return !s.LastActivity.Before(cutoff)
	})
	sortSessions(active)

	return lo.Map(active, func(s model.Session, _ int) model.ActiveSession {
		return model.ActiveSession{
			SessionID:               s.ShortID(),
			Project:                 s.Project(),
			Directory:               s.Directory,
			FirstActivity:           s.FirstActivity,
			LastActivity:            s.LastActivity,
			DurationMinutes:         int64(s.LastActivity.Sub(s.FirstActivity) / time.Minute),
			MessageCount:            s.MessageCount,
			TotalTokens:             s.Tokens.Total(),
			CostUSD:                 s.CostUSD,
			Model:                   s.Model,
			ModelDisplayName:        config.DisplayName(s.Model),
			ContextRemainingPercent: s.ContextRemainingPercent,
			TodoCount:               s.TodoCount,
		}
	})
}

// sortSessions orders by last activity descending, then id.
func sortSessions(ss []model.Session) {
	slices.SortFunc(ss, func(a, b model.Session) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
