package service

import (
	"context"

	"ai-chat-core/pkg/sessionbus"

	"github.com/google/uuid"
)

// ISessionAPI is the external session-lifecycle collaborator. Its successful
// responses are what the chat service publishes on the session bus; the bus
// itself never calls any network API.
type ISessionAPI interface {
	CreateSession(ctx context.Context, userId uuid.UUID, title string) (*sessionbus.Session, error)
	RenameSession(ctx context.Context, userId uuid.UUID, sessionId, title string) error
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId string) error
}
