package pipeline

import (
	"errors"
	"slices"

	"github.com/theirongolddev/ccmeter/internal/model"
)

// ErrIndexCapacity is returned when a pass would grow the in-memory event
// index past its configured maximum. It is the only fatal pass error.
var ErrIndexCapacity = errors.New("event index capacity exceeded")

// eventIndex holds every accepted event. Assistant events sharing a message
// id are duplicates of one API call; only the one with the greatest order key
// (the final billed usage) is effective.
type eventIndex struct {
	events    map[model.EventRef]model.Event
	byFile    map[string][]model.EventRef
	bySession map[string]map[model.EventRef]struct{}
	byMessage map[string][]model.EventRef
	winner    map[string]model.EventRef
}

func newEventIndex() *eventIndex {
	return &eventIndex{
		events:    make(map[model.EventRef]model.Event),
		byFile:    make(map[string][]model.EventRef),
		bySession: make(map[string]map[model.EventRef]struct{}),
		byMessage: make(map[string][]model.EventRef),
		winner:    make(map[string]model.EventRef),
	}
}

func (x *eventIndex) Len() int { return len(x.events) }

// FileLen returns how many events came from path.
func (x *eventIndex) FileLen(path string) int { return len(x.byFile[path]) }

// effective reports whether ev counts toward aggregates.
func (x *eventIndex) effective(ev model.Event) bool {
	if ev.MessageID == "" {
		return true
	}
	return x.winner[ev.MessageID] == ev.Ref
}

// Add inserts ev. fold is true when ev can be folded directly into its
// session; rebuild lists sessions whose effective event set changed in a way
// that needs a replay.
func (x *eventIndex) Add(ev model.Event) (fold bool, rebuild []string) {
	x.events[ev.Ref] = ev
	x.byFile[ev.Ref.Path] = append(x.byFile[ev.Ref.Path], ev.Ref)
	set := x.bySession[ev.SessionID]
	if set == nil {
		set = make(map[model.EventRef]struct{})
		x.bySession[ev.SessionID] = set
	}
	set[ev.Ref] = struct{}{}

	if ev.MessageID == "" {
		return true, nil
	}

	x.byMessage[ev.MessageID] = append(x.byMessage[ev.MessageID], ev.Ref)
	cur, ok := x.winner[ev.MessageID]
	if !ok {
		x.winner[ev.MessageID] = ev.Ref
		return true, nil
	}
	prev := x.events[cur]
	if !prev.Key().Less(ev.Key()) {
		return false, nil
	}
	x.winner[ev.MessageID] = ev.Ref
	return false, uniqueSessions(prev.SessionID, ev.SessionID)
}

// RemoveFile drops every event parsed from path and returns the sessions
// that must be rebuilt.
func (x *eventIndex) RemoveFile(path string) []string {
	refs := x.byFile[path]
	if len(refs) == 0 {
		return nil
	}
	delete(x.byFile, path)

	affected := make(map[string]struct{})
	touchedMsgs := make(map[string]struct{})
	for _, ref := range refs {
		ev := x.events[ref]
		delete(x.events, ref)
		affected[ev.SessionID] = struct{}{}
		if set := x.bySession[ev.SessionID]; set != nil {
			delete(set, ref)
			if len(set) == 0 {
				delete(x.bySession, ev.SessionID)
			}
		}
		if ev.MessageID != "" {
			touchedMsgs[ev.MessageID] = struct{}{}
		}
	}

	for id := range touchedMsgs {
		remaining := slices.DeleteFunc(x.byMessage[id], func(r model.EventRef) bool { return r.Path == path })
		if len(remaining) == 0 {
			delete(x.byMessage, id)
			delete(x.winner, id)
			continue
		}
		x.byMessage[id] = remaining
		best := remaining[0]
		for _, r := range remaining[1:] {
			if x.events[best].Key().Less(x.events[r].Key()) {
				best = r
			}
		}
		if x.winner[id] != best {
			x.winner[id] = best
			affected[x.events[best].SessionID] = struct{}{}
		}
	}

	out := make([]string, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// SessionEvents returns the effective events of a session in order.
func (x *eventIndex) SessionEvents(id string) []model.Event {
	set := x.bySession[id]
	out := make([]model.Event, 0, len(set))
	for ref := range set {
		if ev := x.events[ref]; x.effective(ev) {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b model.Event) int { return a.Key().Compare(b.Key()) })
	return out
}

// Effective returns all effective events in order.
func (x *eventIndex) Effective() []model.Event {
	out := make([]model.Event, 0, len(x.events))
	for _, ev := range x.events {
		if x.effective(ev) {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b model.Event) int { return a.Key().Compare(b.Key()) })
	return out
}

func uniqueSessions(a, b string) []string {
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}
