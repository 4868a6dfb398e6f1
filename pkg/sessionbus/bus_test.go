package sessionbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func TestSynchronousFanOutInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nopLogger{})

	var order []string
	bus.Subscribe(SessionCreated, func(Event) { order = append(order, "first") })
	bus.Subscribe(SessionCreated, func(Event) { order = append(order, "second") })

	bus.Publish(NewCreated(Session{ID: "A"}))

	// Both handlers observed the event before Publish returned.
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(nopLogger{})

	var calls int
	unsubscribe := bus.Subscribe(SessionDeleted, func(Event) { calls++ })

	bus.Publish(NewDeleted("A"))
	unsubscribe()
	bus.Publish(NewDeleted("A"))
	unsubscribe() // second unsubscribe is a no-op

	assert.Equal(t, 1, calls)
}

func TestSubscribeFromWithinHandler(t *testing.T) {
	bus := NewBus(nopLogger{})

	var lateCalls int
	bus.Subscribe(SessionCreated, func(Event) {
		bus.Subscribe(SessionCreated, func(Event) { lateCalls++ })
	})

	bus.Publish(NewCreated(Session{ID: "A"}))
	assert.Equal(t, 0, lateCalls, "handler added mid-publish misses the in-flight event")

	bus.Publish(NewCreated(Session{ID: "B"}))
	assert.Equal(t, 1, lateCalls)
}

func TestUnsubscribeSelfFromWithinHandler(t *testing.T) {
	bus := NewBus(nopLogger{})

	var calls int
	var unsubscribe func()
	unsubscribe = bus.Subscribe(SessionUpdated, func(Event) {
		calls++
		unsubscribe()
	})

	bus.Publish(NewUpdated(Session{ID: "A"}))
	bus.Publish(NewUpdated(Session{ID: "A"}))

	assert.Equal(t, 1, calls)
}

func TestUnsubscribeOtherDuringPublishKeepsSnapshot(t *testing.T) {
	bus := NewBus(nopLogger{})

	var secondCalls int
	var unsubscribeSecond func()
	bus.Subscribe(SessionCreated, func(Event) { unsubscribeSecond() })
	unsubscribeSecond = bus.Subscribe(SessionCreated, func(Event) { secondCalls++ })

	// The snapshot taken at publish start still includes the second
	// handler even though the first removed it mid-fan-out.
	bus.Publish(NewCreated(Session{ID: "A"}))
	assert.Equal(t, 1, secondCalls)

	bus.Publish(NewCreated(Session{ID: "B"}))
	assert.Equal(t, 1, secondCalls)
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus(nopLogger{})

	var survived bool
	bus.Subscribe(SessionCreated, func(Event) { panic("broken handler") })
	bus.Subscribe(SessionCreated, func(Event) { survived = true })

	assert.NotPanics(t, func() {
		bus.Publish(NewCreated(Session{ID: "A"}))
	})
	assert.True(t, survived, "a failing handler must not block the rest")
}

func TestKindsAreIndependent(t *testing.T) {
	bus := NewBus(nopLogger{})

	var created, deleted int
	bus.Subscribe(SessionCreated, func(Event) { created++ })
	bus.Subscribe(SessionDeleted, func(Event) { deleted++ })

	bus.Publish(NewCreated(Session{ID: "A"}))

	assert.Equal(t, 1, created)
	assert.Equal(t, 0, deleted)
}
