// Package sessionbus is the process-wide broadcast fabric for chat session
// lifecycle notifications. Independently mounted views (the sidebar session
// list, the active conversation) each keep their own local copy of session
// data and converge through these events instead of sharing a store.
package sessionbus

import (
	"sync"
	"time"

	"ai-chat-core/internal/pkg/logger"
)

type Kind string

const (
	SessionCreated      Kind = "SESSION_CREATED"
	SessionUpdated      Kind = "SESSION_UPDATED"
	SessionDeleted      Kind = "SESSION_DELETED"
	SessionTitleUpdated Kind = "SESSION_TITLE_UPDATED"
)

// Kinds lists every event kind, in a stable order, for consumers that mount
// on the whole lifecycle (views, relays).
func Kinds() []Kind {
	return []Kind{SessionCreated, SessionUpdated, SessionDeleted, SessionTitleUpdated}
}

// Session is the notification payload. The bus only relays these records;
// it never persists them.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Event struct {
	Kind      Kind     `json:"kind"`
	Session   *Session `json:"session,omitempty"`    // Created / Updated
	SessionID string   `json:"session_id,omitempty"` // Deleted / TitleUpdated
	Title     string   `json:"title,omitempty"`      // TitleUpdated
}

func NewCreated(s Session) Event {
	return Event{Kind: SessionCreated, Session: &s, SessionID: s.ID}
}

func NewUpdated(s Session) Event {
	return Event{Kind: SessionUpdated, Session: &s, SessionID: s.ID}
}

func NewDeleted(id string) Event {
	return Event{Kind: SessionDeleted, SessionID: id}
}

func NewTitleUpdated(id, title string) Event {
	return Event{Kind: SessionTitleUpdated, SessionID: id, Title: title}
}

type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[Kind][]*subscription
	logger logger.ILogger
}

func NewBus(log logger.ILogger) *Bus {
	return &Bus{
		subs:   make(map[Kind][]*subscription),
		logger: log,
	}
}

// Subscribe registers handler for kind and returns its unsubscribe closure.
// Both are safe to call from inside a running handler; unsubscribing twice
// is a no-op. Every mounted view must unsubscribe on teardown.
func (b *Bus) Subscribe(kind Kind, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, fn: handler}
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		current := b.subs[kind]
		for i, s := range current {
			if s.id == sub.id {
				// Copy-on-remove so a snapshot held by an in-flight
				// Publish stays intact.
				replaced := make([]*subscription, 0, len(current)-1)
				replaced = append(replaced, current[:i]...)
				replaced = append(replaced, current[i+1:]...)
				b.subs[kind] = replaced
				return
			}
		}
	}
}

// Publish delivers evt to every listener subscribed at the moment the call
// starts, synchronously and in subscription order. A handler registered or
// removed during fan-out does not affect the in-flight delivery. A panicking
// handler is isolated: later handlers still run.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	snapshot := b.subs[evt.Kind]
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.invoke(sub, evt)
	}
}

func (b *Bus) invoke(sub *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("SessionBus", "Handler panicked during fan-out", map[string]interface{}{
				"kind":  string(evt.Kind),
				"panic": r,
			})
		}
	}()
	sub.fn(evt)
}
