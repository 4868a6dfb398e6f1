package bootstrap

import (
	"context"
	"log"

	"ai-chat-core/internal/config"
	"ai-chat-core/internal/controller"
	"ai-chat-core/internal/pkg/logger"
	"ai-chat-core/internal/service"
	"ai-chat-core/internal/websocket"
	"ai-chat-core/pkg/cache"
	"ai-chat-core/pkg/health"
	"ai-chat-core/pkg/sessionbus"
	"ai-chat-core/pkg/stream"

	pktNats "ai-chat-core/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	RelayService    service.IRelayService

	// Core components
	SessionBus   *sessionbus.Bus
	CacheStore   *cache.Store
	Monitor      *health.Monitor
	WebSocketHub *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. In-process Event Fabric
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	bus := sessionbus.NewBus(sysLogger)

	// 3. Infrastructure
	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)

	// Connection Health Monitor: one bounded probe at startup, refreshed
	// afterwards only by real traffic outcomes. Optimistic until checked.
	monitor := health.NewMonitor(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}, cfg.Cache.ProbeTimeout, sysLogger)
	go monitor.InitialProbe(context.Background())

	// Two-tier cache: Redis primary, in-process fallback
	cacheStore := cache.NewStore(cache.NewRedisBackend(rdb), monitor, sysLogger)

	// NATS (optional forwarding to sibling services)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/ws_events.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Streaming Channel
	channel := stream.NewChannel(
		stream.NewHTTPTransport(cfg.Chat.StreamEndpoint),
		websocket.NewStreamSink(wsHub),
		stream.StaticCredentials(cfg.Chat.APIToken),
		monitor,
		sysLogger,
	)

	// 5. Services
	sessionAPI := service.NewHTTPSessionAPI(cfg.Chat.SessionAPIEndpoint)
	chatService := service.NewChatService(
		channel,
		cacheStore,
		bus,
		monitor,
		sessionAPI,
		cfg.Cache.ExtractionTTL,
		sysLogger,
	)

	relayService := service.NewRelayService(bus, pubSub, cfg.App.SessionEventsTopic, sysLogger)
	relayService.Start()

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.SessionEventsTopic,
		wsHub,
		natsPub,
		wsLogger,
	)

	// 6. Controllers
	return &Container{
		ChatController:  controller.NewChatController(chatService),
		ConsumerService: consumerService,
		RelayService:    relayService,
		SessionBus:      bus,
		CacheStore:      cacheStore,
		Monitor:         monitor,
		WebSocketHub:    wsHub,
	}
}
