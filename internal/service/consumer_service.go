package service

import (
	"context"
	"encoding/json"

	"ai-chat-core/internal/pkg/logger"
	"ai-chat-core/internal/websocket"
	"ai-chat-core/pkg/events"
	pktNats "ai-chat-core/pkg/nats"
	"ai-chat-core/pkg/sessionbus"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains relayed session events and delivers them: to every
// connected websocket client, and onward to NATS when a sibling-service
// publisher is configured.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	hub       *websocket.Hub
	natsPub   *pktNats.Publisher // nil when NATS is unavailable
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	hub *websocket.Hub,
	natsPub *pktNats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		hub:       hub,
		natsPub:   natsPub,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var evt sessionbus.Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal session event", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.hub.Broadcast("session_event", evt)

	if cs.natsPub != nil {
		payload := map[string]interface{}{
			"session_id": evt.SessionID,
		}
		if evt.Session != nil {
			payload["session"] = evt.Session
		}
		if evt.Title != "" {
			payload["title"] = evt.Title
		}
		if err := cs.natsPub.Publish(ctx, events.NewSessionEvent(string(evt.Kind), payload)); err != nil {
			cs.logger.Warn("Consumer", "NATS forward failed", map[string]interface{}{
				"kind":  string(evt.Kind),
				"error": err.Error(),
			})
		}
	}

	msg.Ack()
}
