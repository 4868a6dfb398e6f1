package stream

import (
	"bytes"
	"encoding/json"

	"ai-chat-core/internal/pkg/logger"
)

// Event is one decoded frame of the chunked response: a partial-text delta,
// a terminal marker, or an explicit error from the backend.
type Event struct {
	Delta string
	Done  bool
	Err   string
}

// Decoder parses the newline-delimited JSON framing of the message-send
// endpoint. It is the only place that knows the wire format; the channel
// state machine consumes Events and could sit on top of any other framing.
type Decoder struct {
	logger logger.ILogger
}

func NewDecoder(log logger.ILogger) *Decoder {
	return &Decoder{logger: log}
}

// Decode parses one line independently. Malformed lines are logged and
// skipped (ok=false); they must never abort an otherwise-healthy stream.
func (d *Decoder) Decode(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}

	var frame struct {
		Delta string `json:"delta"`
		Done  bool   `json:"done"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &frame); err != nil {
		d.logger.Warn("StreamDecoder", "Skipping malformed stream line", map[string]interface{}{
			"line":  string(line),
			"error": err.Error(),
		})
		return Event{}, false
	}

	return Event{Delta: frame.Delta, Done: frame.Done, Err: frame.Error}, true
}
