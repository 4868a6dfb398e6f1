// Package stream assembles an incrementally-delivered AI response into a
// single growing message, at most one active stream per chat session.
package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"ai-chat-core/internal/pkg/logger"
	"ai-chat-core/pkg/health"

	"github.com/google/uuid"
)

// Sink is the UI-facing message list. The channel creates exactly one
// placeholder per send and always hands over the authoritative cumulative
// text, so consumers replace, never append.
type Sink interface {
	PlaceholderCreated(sessionID, messageID string)
	MessageUpdated(sessionID, messageID, text string)
	MessageCompleted(sessionID, messageID string)
	MessageFailed(sessionID, messageID, reason string)
}

// Result reports a completed stream.
type Result struct {
	MessageID string
	Text      string
	Latency   time.Duration
}

type streamState struct {
	messageID string
	cancel    context.CancelFunc
	body      io.Closer
}

type Channel struct {
	mu     sync.Mutex
	active map[string]*streamState

	transport Transport
	sink      Sink
	creds     CredentialSource
	monitor   *health.Monitor
	decoder   *Decoder
	logger    logger.ILogger
}

func NewChannel(
	transport Transport,
	sink Sink,
	creds CredentialSource,
	monitor *health.Monitor,
	log logger.ILogger,
) *Channel {
	return &Channel{
		active:    make(map[string]*streamState),
		transport: transport,
		sink:      sink,
		creds:     creds,
		monitor:   monitor,
		decoder:   NewDecoder(log),
		logger:    log,
	}
}

// IsStreaming reports whether sessionID has an active stream.
func (c *Channel) IsStreaming(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[sessionID]
	return ok
}

// Cancel forcibly closes the transport and read loop for sessionID.
// Idempotent: cancelling an already-finished stream is a no-op.
func (c *Channel) Cancel(sessionID string) {
	c.mu.Lock()
	st := c.active[sessionID]
	var body io.Closer
	if st != nil {
		body = st.body
	}
	c.mu.Unlock()

	if st == nil {
		return
	}
	st.cancel()
	if body != nil {
		body.Close()
	}
}

// Send opens the chunked response for sessionID and assembles it. The
// streaming flag is guaranteed false on return, whatever the outcome.
func (c *Channel) Send(ctx context.Context, sessionID string, payload SendPayload) (*Result, error) {
	c.mu.Lock()
	if _, busy := c.active[sessionID]; busy {
		c.mu.Unlock()
		return nil, ErrStreamBusy
	}
	streamCtx, cancel := context.WithCancel(ctx)
	st := &streamState{
		messageID: uuid.NewString(),
		cancel:    cancel,
	}
	c.active[sessionID] = st
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.active, sessionID)
		c.mu.Unlock()
		cancel()
	}()

	token, err := c.creds.Token(streamCtx)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	started := time.Now()
	c.sink.PlaceholderCreated(sessionID, st.messageID)

	body, err := c.transport.Open(streamCtx, Request{
		SessionID: sessionID,
		Token:     token,
		Payload:   payload,
	})
	if err != nil {
		if streamCtx.Err() != nil {
			c.sink.MessageFailed(sessionID, st.messageID, "cancelled")
			return nil, ErrStreamCancelled
		}
		c.monitor.ReportOutcome(false)
		c.sink.MessageFailed(sessionID, st.messageID, "connection failed")
		if errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
		return nil, &TransportError{Cause: err}
	}
	defer body.Close()

	c.mu.Lock()
	st.body = body
	c.mu.Unlock()

	var accumulated strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		ev, ok := c.decoder.Decode(scanner.Bytes())
		if !ok {
			continue
		}

		if ev.Err != "" {
			c.monitor.ReportOutcome(false)
			c.sink.MessageFailed(sessionID, st.messageID, ev.Err)
			return nil, &TransportError{
				Cause:   &backendError{message: ev.Err},
				Partial: accumulated.String(),
			}
		}

		if ev.Delta != "" {
			accumulated.WriteString(ev.Delta)
			c.sink.MessageUpdated(sessionID, st.messageID, accumulated.String())
		}

		if ev.Done {
			c.sink.MessageCompleted(sessionID, st.messageID)
			c.monitor.ReportOutcome(true)
			return &Result{
				MessageID: st.messageID,
				Text:      accumulated.String(),
				Latency:   time.Since(started),
			}, nil
		}
	}

	// The loop only falls through when the transport died under us:
	// caller cancellation, a read error, or EOF without a terminal marker.
	if streamCtx.Err() != nil {
		c.sink.MessageFailed(sessionID, st.messageID, "cancelled")
		return nil, ErrStreamCancelled
	}

	readErr := scanner.Err()
	if readErr == nil {
		readErr = io.ErrUnexpectedEOF
	}
	c.monitor.ReportOutcome(false)
	c.sink.MessageFailed(sessionID, st.messageID, readErr.Error())
	c.logger.Warn("StreamChannel", "Stream aborted mid-read", map[string]interface{}{
		"session_id": sessionID,
		"error":      readErr.Error(),
	})
	return nil, &TransportError{Cause: readErr, Partial: accumulated.String()}
}

type backendError struct {
	message string
}

func (e *backendError) Error() string {
	return e.message
}
