package websocket

// StreamSink mirrors the in-progress AI message over the hub so every
// attached client sees the placeholder grow in place. It satisfies the
// streaming channel's Sink contract: the text sent on each update is the
// authoritative cumulative string, consumers replace rather than append.
type StreamSink struct {
	hub *Hub
}

func NewStreamSink(hub *Hub) *StreamSink {
	return &StreamSink{hub: hub}
}

type streamFrame struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Text      string `json:"text,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (s *StreamSink) PlaceholderCreated(sessionID, messageID string) {
	s.hub.Broadcast("stream_started", streamFrame{SessionID: sessionID, MessageID: messageID})
}

func (s *StreamSink) MessageUpdated(sessionID, messageID, text string) {
	s.hub.Broadcast("stream_delta", streamFrame{SessionID: sessionID, MessageID: messageID, Text: text})
}

func (s *StreamSink) MessageCompleted(sessionID, messageID string) {
	s.hub.Broadcast("stream_completed", streamFrame{SessionID: sessionID, MessageID: messageID})
}

// MessageFailed leaves the partially-assembled message visible on the
// client with a distinct failed marker; it is never deleted.
func (s *StreamSink) MessageFailed(sessionID, messageID, reason string) {
	s.hub.Broadcast("stream_failed", streamFrame{SessionID: sessionID, MessageID: messageID, Reason: reason})
}
