package service

import (
	"encoding/json"

	"ai-chat-core/internal/pkg/logger"
	"ai-chat-core/pkg/sessionbus"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IRelayService bridges the synchronous session bus onto the in-process
// watermill topic, decoupling client delivery (websocket, NATS forwarding)
// from the publisher's call stack. Handlers on the bus must stay cheap;
// anything that does I/O consumes from the topic instead.
type IRelayService interface {
	Start() func()
}

type relayService struct {
	bus       *sessionbus.Bus
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger
}

func NewRelayService(
	bus *sessionbus.Bus,
	pubSub *gochannel.GoChannel,
	topicName string,
	log logger.ILogger,
) IRelayService {
	return &relayService{
		bus:       bus,
		pubSub:    pubSub,
		topicName: topicName,
		logger:    log,
	}
}

// Start mounts the relay on every lifecycle kind and returns its teardown.
func (rs *relayService) Start() func() {
	unsubs := make([]func(), 0, len(sessionbus.Kinds()))
	for _, kind := range sessionbus.Kinds() {
		unsubs = append(unsubs, rs.bus.Subscribe(kind, rs.forward))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (rs *relayService) forward(evt sessionbus.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		rs.logger.Error("Relay", "Failed to serialize session event", map[string]interface{}{
			"kind":  string(evt.Kind),
			"error": err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := rs.pubSub.Publish(rs.topicName, msg); err != nil {
		rs.logger.Error("Relay", "Failed to publish session event", map[string]interface{}{
			"kind":  string(evt.Kind),
			"error": err.Error(),
		})
	}
}
