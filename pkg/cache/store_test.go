package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-chat-core/pkg/health"

	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

var errBackendDown = errors.New("connection refused")

// downBackend simulates an unreachable primary tier.
type downBackend struct{}

func (downBackend) Ping(context.Context) error { return errBackendDown }
func (downBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errBackendDown
}
func (downBackend) Get(context.Context, string) ([]byte, error) { return nil, errBackendDown }
func (downBackend) Del(context.Context, string) error           { return errBackendDown }

// memBackend is a healthy in-memory primary.
type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (b *memBackend) Ping(context.Context) error { return nil }

func (b *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.data[key]; ok {
		return v, nil
	}
	return nil, ErrKeyNotFound
}

func (b *memBackend) Del(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func newTestMonitor() *health.Monitor {
	return health.NewMonitor(func(ctx context.Context) error { return nil }, time.Second, nopLogger{})
}

type artifact struct {
	ExtractedText string `json:"extractedText"`
	FileName      string `json:"fileName"`
}

func TestFallbackServesWhenPrimaryDown(t *testing.T) {
	ctx := context.Background()
	store := NewStore(downBackend{}, newTestMonitor(), nopLogger{})

	want := artifact{ExtractedText: "lorem ipsum", FileName: "report.pdf"}
	primaryOK, err := store.Put(ctx, "upload-1", want, time.Minute)
	assert.NoError(t, err, "primary failure must never surface as an error")
	assert.False(t, primaryOK, "degraded write must be reported")

	raw, found := store.Get(ctx, "upload-1")
	assert.True(t, found)

	var got artifact
	assert.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, want, got)
}

func TestFallbackEntryExpires(t *testing.T) {
	ctx := context.Background()
	store := NewStore(downBackend{}, newTestMonitor(), nopLogger{})

	_, err := store.Put(ctx, "short-lived", artifact{ExtractedText: "x"}, 30*time.Millisecond)
	assert.NoError(t, err)

	_, found := store.Get(ctx, "short-lived")
	assert.True(t, found)

	time.Sleep(60 * time.Millisecond)

	_, found = store.Get(ctx, "short-lived")
	assert.False(t, found, "entry past its ttl must read as absent")
}

func TestPrimaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	store := NewStore(backend, newTestMonitor(), nopLogger{})

	primaryOK, err := store.Put(ctx, "k", artifact{ExtractedText: "hello"}, time.Minute)
	assert.NoError(t, err)
	assert.True(t, primaryOK)

	raw, found := store.Get(ctx, "k")
	assert.True(t, found)
	assert.Contains(t, string(raw), "hello")
}

func TestInvalidTTLRejected(t *testing.T) {
	store := NewStore(newMemBackend(), newTestMonitor(), nopLogger{})

	_, err := store.Put(context.Background(), "k", artifact{}, 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	_, err = store.Put(context.Background(), "k", artifact{}, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestSerializationFailureIsHardError(t *testing.T) {
	store := NewStore(newMemBackend(), newTestMonitor(), nopLogger{})

	_, err := store.Put(context.Background(), "k", make(chan int), time.Minute)
	assert.Error(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(downBackend{}, newTestMonitor(), nopLogger{})

	_, err := store.Put(ctx, "k", artifact{ExtractedText: "x"}, time.Minute)
	assert.NoError(t, err)

	store.Delete(ctx, "k")
	store.Delete(ctx, "k") // absent key, must not panic or error

	_, found := store.Get(ctx, "k")
	assert.False(t, found)
}

func TestHealthCheckReportsAuthoritativeTier(t *testing.T) {
	ctx := context.Background()

	healthy := NewStore(newMemBackend(), newTestMonitor(), nopLogger{})
	assert.Equal(t, Health{Status: StatusHealthy, Backend: BackendPrimary}, healthy.HealthCheck(ctx))

	degraded := NewStore(downBackend{}, newTestMonitor(), nopLogger{})
	assert.Equal(t, Health{Status: StatusUnhealthy, Backend: BackendFallback}, degraded.HealthCheck(ctx))
}

func TestDegradedWriteSurvivesInFallbackAfterPrimaryRecovers(t *testing.T) {
	// A put that only landed in the fallback must stay readable even when
	// later primary reads succeed with a miss.
	ctx := context.Background()
	monitor := newTestMonitor()
	backend := newMemBackend()
	store := NewStore(backend, monitor, nopLogger{})

	store.fallback.Set("orphan", []byte(`{"extractedText":"kept"}`), time.Minute)

	raw, found := store.Get(ctx, "orphan")
	assert.True(t, found)
	assert.Contains(t, string(raw), "kept")
}
