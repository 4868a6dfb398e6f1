package sessionbus

import (
	"sync"
	"time"
)

// SessionList is the local session copy a mounted view owns. Apply is
// idempotent by construction: the same logical event may arrive more than
// once (optimistic local action plus later server confirmation), and
// independently-triggered publishes carry no cross-publish ordering, so
// convergence rests on these rules rather than on arrival order.
type SessionList struct {
	mu       sync.Mutex
	sessions []Session
	now      func() time.Time
}

func NewSessionList() *SessionList {
	return &SessionList{now: time.Now}
}

// Bind mounts the list on every lifecycle kind of bus and returns the
// teardown closure that unsubscribes all of them.
func (l *SessionList) Bind(bus *Bus) func() {
	unsubs := make([]func(), 0, len(Kinds()))
	for _, kind := range Kinds() {
		unsubs = append(unsubs, bus.Subscribe(kind, l.Apply))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (l *SessionList) Apply(evt Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch evt.Kind {
	case SessionCreated:
		if evt.Session == nil || l.indexOf(evt.Session.ID) >= 0 {
			return
		}
		// Newest first, matching the sidebar ordering.
		l.sessions = append([]Session{*evt.Session}, l.sessions...)

	case SessionUpdated:
		if evt.Session == nil {
			return
		}
		i := l.indexOf(evt.Session.ID)
		if i < 0 {
			// Never create a phantom entry from an update.
			return
		}
		if evt.Session.Title != "" {
			l.sessions[i].Title = evt.Session.Title
		}
		if !evt.Session.UpdatedAt.IsZero() {
			l.sessions[i].UpdatedAt = evt.Session.UpdatedAt
		}

	case SessionDeleted:
		i := l.indexOf(evt.SessionID)
		if i < 0 {
			return
		}
		l.sessions = append(l.sessions[:i], l.sessions[i+1:]...)

	case SessionTitleUpdated:
		i := l.indexOf(evt.SessionID)
		if i < 0 {
			return
		}
		l.sessions[i].Title = evt.Title
		l.sessions[i].UpdatedAt = l.now()
	}
}

// Snapshot returns a copy of the current list.
func (l *SessionList) Snapshot() []Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Session, len(l.sessions))
	copy(out, l.sessions)
	return out
}

func (l *SessionList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

func (l *SessionList) indexOf(id string) int {
	for i := range l.sessions {
		if l.sessions[i].ID == id {
			return i
		}
	}
	return -1
}
