package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-chat-core/internal/dto"
	"ai-chat-core/internal/pkg/logger"
	"ai-chat-core/pkg/cache"
	"ai-chat-core/pkg/health"
	"ai-chat-core/pkg/sessionbus"
	"ai-chat-core/pkg/stream"

	"github.com/google/uuid"
)

var errBackendOffline = errors.New("inference backend unreachable")

type IChatService interface {
	SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	CancelStream(sessionId string)
	IsStreaming(sessionId string) bool
	CacheExtraction(ctx context.Context, req *dto.CacheExtractionRequest) (*dto.CacheExtractionResponse, error)
	CacheHealth(ctx context.Context) cache.Health
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*sessionbus.Session, error)
	RenameSession(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.RenameSessionRequest) error
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId string) error
}

type chatService struct {
	channel       *stream.Channel
	cacheStore    *cache.Store
	bus           *sessionbus.Bus
	monitor       *health.Monitor
	sessions      ISessionAPI
	extractionTTL time.Duration
	logger        logger.ILogger
}

func NewChatService(
	channel *stream.Channel,
	cacheStore *cache.Store,
	bus *sessionbus.Bus,
	monitor *health.Monitor,
	sessions ISessionAPI,
	extractionTTL time.Duration,
	log logger.ILogger,
) IChatService {
	return &chatService{
		channel:       channel,
		cacheStore:    cacheStore,
		bus:           bus,
		monitor:       monitor,
		sessions:      sessions,
		extractionTTL: extractionTTL,
		logger:        log,
	}
}

func extractionKey(uploadId string) string {
	return "extraction:" + uploadId
}

// SendMessage resolves any cached document context, runs the stream to
// completion and pushes the session-updated notification that keeps other
// mounted views consistent.
func (s *chatService) SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	if !s.monitor.IsConnected() {
		// Known-offline backends fail fast instead of burning a connect
		// timeout per send.
		return nil, &stream.TransportError{Cause: errBackendOffline}
	}

	payload := stream.SendPayload{Text: req.Message}
	if req.UploadId != "" {
		if raw, ok := s.cacheStore.Get(ctx, extractionKey(req.UploadId)); ok {
			var extraction dto.ExtractionResult
			if err := json.Unmarshal(raw, &extraction); err == nil {
				payload.FileContext = &stream.FileContext{
					ExtractedText: extraction.ExtractedText,
					FileURL:       extraction.FileUrl,
					FileName:      extraction.FileName,
				}
			}
		} else {
			// A miss just means the document must be re-processed upstream.
			s.logger.Info("Chat", "Extraction cache miss", map[string]interface{}{
				"upload_id": req.UploadId,
				"user_id":   userId,
			})
		}
	}

	res, err := s.channel.Send(ctx, req.SessionId, payload)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(sessionbus.NewUpdated(sessionbus.Session{
		ID:        req.SessionId,
		UpdatedAt: time.Now(),
	}))

	return &dto.SendMessageResponse{
		SessionId: req.SessionId,
		MessageId: res.MessageID,
		Response:  res.Text,
		LatencyMs: res.Latency.Milliseconds(),
	}, nil
}

func (s *chatService) CancelStream(sessionId string) {
	s.channel.Cancel(sessionId)
}

func (s *chatService) IsStreaming(sessionId string) bool {
	return s.channel.IsStreaming(sessionId)
}

func (s *chatService) CacheExtraction(ctx context.Context, req *dto.CacheExtractionRequest) (*dto.CacheExtractionResponse, error) {
	result := dto.ExtractionResult{
		ExtractedText: req.ExtractedText,
		FileUrl:       req.FileUrl,
		FileName:      req.FileName,
	}

	primaryOK, err := s.cacheStore.Put(ctx, extractionKey(req.UploadId), result, s.extractionTTL)
	if err != nil {
		return nil, err
	}
	if !primaryOK {
		s.logger.Warn("Chat", "Extraction cached in degraded mode", map[string]interface{}{
			"upload_id": req.UploadId,
		})
	}

	return &dto.CacheExtractionResponse{UploadId: req.UploadId, Degraded: !primaryOK}, nil
}

func (s *chatService) CacheHealth(ctx context.Context) cache.Health {
	return s.cacheStore.HealthCheck(ctx)
}

func (s *chatService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*sessionbus.Session, error) {
	session, err := s.sessions.CreateSession(ctx, userId, req.Title)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(sessionbus.NewCreated(*session))
	return session, nil
}

func (s *chatService) RenameSession(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.RenameSessionRequest) error {
	if err := s.sessions.RenameSession(ctx, userId, sessionId, req.Title); err != nil {
		return err
	}
	s.bus.Publish(sessionbus.NewTitleUpdated(sessionId, req.Title))
	return nil
}

func (s *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, sessionId string) error {
	if err := s.sessions.DeleteSession(ctx, userId, sessionId); err != nil {
		return err
	}
	s.bus.Publish(sessionbus.NewDeleted(sessionId))
	return nil
}
