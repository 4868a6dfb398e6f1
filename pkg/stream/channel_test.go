package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-chat-core/pkg/health"

	"github.com/stretchr/testify/assert"
)

// memorySink records placeholder lifecycle per session, standing in for the
// UI-facing message list.
type memorySink struct {
	mu           sync.Mutex
	placeholders map[string]int
	texts        map[string]string
	completed    map[string]bool
	failed       map[string]string
}

func newMemorySink() *memorySink {
	return &memorySink{
		placeholders: make(map[string]int),
		texts:        make(map[string]string),
		completed:    make(map[string]bool),
		failed:       make(map[string]string),
	}
}

func (s *memorySink) PlaceholderCreated(sessionID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholders[sessionID]++
}

func (s *memorySink) MessageUpdated(sessionID, messageID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[sessionID] = text
}

func (s *memorySink) MessageCompleted(sessionID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[sessionID] = true
}

func (s *memorySink) MessageFailed(sessionID, messageID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[sessionID] = reason
}

func (s *memorySink) text(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[sessionID]
}

func (s *memorySink) placeholderCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placeholders[sessionID]
}

func (s *memorySink) failedReason(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.failed[sessionID]
	return r, ok
}

// scriptTransport serves a canned body per session and counts opens.
type scriptTransport struct {
	mu     sync.Mutex
	bodies map[string]func() (io.ReadCloser, error)
	opens  int32
}

func newScriptTransport() *scriptTransport {
	return &scriptTransport{bodies: make(map[string]func() (io.ReadCloser, error))}
}

func (t *scriptTransport) serve(sessionID string, body func() (io.ReadCloser, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bodies[sessionID] = body
}

func (t *scriptTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	atomic.AddInt32(&t.opens, 1)
	t.mu.Lock()
	body := t.bodies[req.SessionID]
	t.mu.Unlock()
	if body == nil {
		return nil, errors.New("no script for session")
	}
	return body()
}

func (t *scriptTransport) openCount() int32 {
	return atomic.LoadInt32(&t.opens)
}

// failingReader yields its data once then errors, simulating a transport
// dropped mid-stream.
type failingReader struct {
	data   []byte
	err    error
	served bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true
		n := copy(p, r.data)
		return n, nil
	}
	return 0, r.err
}

func (r *failingReader) Close() error { return nil }

func ndjson(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func newTestChannel(transport Transport, sink Sink) *Channel {
	monitor := health.NewMonitor(func(ctx context.Context) error { return nil }, time.Second, nopLogger{})
	return NewChannel(transport, sink, StaticCredentials("test-token"), monitor, nopLogger{})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAssemblyIsDeterministic(t *testing.T) {
	transport := newScriptTransport()
	transport.serve("s1", func() (io.ReadCloser, error) {
		return ndjson(
			`{"delta":"Hel"}`,
			`{"delta":"lo, "}`,
			`{"delta":"world"}`,
			`{"done":true}`,
		), nil
	})
	sink := newMemorySink()
	ch := newTestChannel(transport, sink)

	res, err := ch.Send(context.Background(), "s1", SendPayload{Text: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "Hello, world", res.Text)
	assert.Equal(t, "Hello, world", sink.text("s1"))
	assert.Equal(t, 1, sink.placeholderCount("s1"), "exactly one placeholder per send")
	assert.False(t, ch.IsStreaming("s1"), "streaming flag must be clear on exit")
	assert.GreaterOrEqual(t, res.Latency, time.Duration(0))
}

func TestBusySessionRejectsSecondSend(t *testing.T) {
	pr, pw := io.Pipe()
	transport := newScriptTransport()
	transport.serve("s1", func() (io.ReadCloser, error) { return pr, nil })
	sink := newMemorySink()
	ch := newTestChannel(transport, sink)

	done := make(chan error, 1)
	go func() {
		_, err := ch.Send(context.Background(), "s1", SendPayload{Text: "hi"})
		done <- err
	}()

	waitFor(t, func() bool { return ch.IsStreaming("s1") })

	_, err := ch.Send(context.Background(), "s1", SendPayload{Text: "again"})
	assert.ErrorIs(t, err, ErrStreamBusy)
	assert.Equal(t, int32(1), transport.openCount(), "busy rejection must not open a second connection")

	pw.Write([]byte(`{"done":true}` + "\n"))
	pw.Close()
	assert.NoError(t, <-done)
	assert.False(t, ch.IsStreaming("s1"))
}

func TestTransportFailurePreservesPartialText(t *testing.T) {
	transport := newScriptTransport()
	transport.serve("s1", func() (io.ReadCloser, error) {
		return &failingReader{
			data: []byte(`{"delta":"Hel"}` + "\n"),
			err:  errors.New("connection reset"),
		}, nil
	})
	sink := newMemorySink()
	ch := newTestChannel(transport, sink)

	_, err := ch.Send(context.Background(), "s1", SendPayload{Text: "hi"})

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "Hel", transportErr.Partial)
	assert.Equal(t, "Hel", sink.text("s1"), "partial content must stay visible")
	_, failed := sink.failedReason("s1")
	assert.True(t, failed)
	assert.False(t, ch.IsStreaming("s1"))
}

func TestBackendErrorEventFailsStream(t *testing.T) {
	transport := newScriptTransport()
	transport.serve("s1", func() (io.ReadCloser, error) {
		return ndjson(
			`{"delta":"Hel"}`,
			`{"error":"model overloaded"}`,
		), nil
	})
	sink := newMemorySink()
	ch := newTestChannel(transport, sink)

	_, err := ch.Send(context.Background(), "s1", SendPayload{Text: "hi"})

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "Hel", transportErr.Partial)
	reason, _ := sink.failedReason("s1")
	assert.Equal(t, "model overloaded", reason)
}

func TestMalformedLinesNeverAbortStream(t *testing.T) {
	transport := newScriptTransport()
	transport.serve("s1", func() (io.ReadCloser, error) {
		return ndjson(
			`{"delta":"Hel"}`,
			`garbage that is not json`,
			`{"delta":"lo"}`,
			`{"done":true}`,
		), nil
	})
	sink := newMemorySink()
	ch := newTestChannel(transport, sink)

	res, err := ch.Send(context.Background(), "s1", SendPayload{Text: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "Hello", res.Text)
}

func TestCancelClosesStream(t *testing.T) {
	pr, pw := io.Pipe()
	transport := newScriptTransport()
	transport.serve("s1", func() (io.ReadCloser, error) { return pr, nil })
	sink := newMemorySink()
	ch := newTestChannel(transport, sink)

	done := make(chan error, 1)
	go func() {
		_, err := ch.Send(context.Background(), "s1", SendPayload{Text: "hi"})
		done <- err
	}()

	waitFor(t, func() bool { return ch.IsStreaming("s1") })
	pw.Write([]byte(`{"delta":"Hel"}` + "\n"))
	waitFor(t, func() bool { return sink.text("s1") == "Hel" })

	ch.Cancel("s1")

	err := <-done
	assert.ErrorIs(t, err, ErrStreamCancelled)
	assert.False(t, ch.IsStreaming("s1"))
	assert.Equal(t, "Hel", sink.text("s1"), "partial text survives cancellation")

	// Cancelling after completion is a no-op.
	ch.Cancel("s1")
	pw.Close()
}

func TestMissingCredentialFailsImmediately(t *testing.T) {
	transport := newScriptTransport()
	sink := newMemorySink()
	monitor := health.NewMonitor(func(ctx context.Context) error { return nil }, time.Second, nopLogger{})
	ch := NewChannel(transport, sink, StaticCredentials(""), monitor, nopLogger{})

	_, err := ch.Send(context.Background(), "s1", SendPayload{Text: "hi"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, int32(0), transport.openCount(), "no request without a credential")
	assert.Equal(t, 0, sink.placeholderCount("s1"))
	assert.False(t, ch.IsStreaming("s1"))
}

func TestSessionsStreamIndependently(t *testing.T) {
	transport := newScriptTransport()
	transport.serve("s1", func() (io.ReadCloser, error) {
		return &failingReader{
			data: []byte(`{"delta":"Hel"}` + "\n"),
			err:  errors.New("connection reset"),
		}, nil
	})
	transport.serve("s2", func() (io.ReadCloser, error) {
		return ndjson(
			`{"delta":"Hello, "}`,
			`{"delta":"world"}`,
			`{"done":true}`,
		), nil
	})
	sink := newMemorySink()
	ch := newTestChannel(transport, sink)

	var wg sync.WaitGroup
	var err1, err2 error
	var res2 *Result

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err1 = ch.Send(context.Background(), "s1", SendPayload{Text: "a"})
	}()
	go func() {
		defer wg.Done()
		res2, err2 = ch.Send(context.Background(), "s2", SendPayload{Text: "b"})
	}()
	wg.Wait()

	var transportErr *TransportError
	assert.ErrorAs(t, err1, &transportErr)
	assert.NoError(t, err2)
	assert.Equal(t, "Hello, world", res2.Text)
	assert.False(t, ch.IsStreaming("s1"))
	assert.False(t, ch.IsStreaming("s2"))
}
