package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamBusy rejects a send while a stream is already active for the
	// same session. Guards against duplicate submission (double-click,
	// retry races); no transport connection is opened.
	ErrStreamBusy = errors.New("stream: session already streaming")

	// ErrStreamCancelled marks a caller-initiated abort, distinct from a
	// transport failure for UI messaging purposes.
	ErrStreamCancelled = errors.New("stream: cancelled")

	// ErrUnauthenticated means no valid credential was available when
	// opening the stream. Surfaced immediately, never retried here.
	ErrUnauthenticated = errors.New("stream: no valid credential")
)

// TransportError wraps a mid-stream failure. Partial carries whatever text
// was assembled before the failure so the caller can render it; the
// placeholder message is never silently deleted.
type TransportError struct {
	Cause   error
	Partial string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream: transport failure: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
