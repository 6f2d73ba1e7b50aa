package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-study-portal-be/internal/config"
	"ai-study-portal-be/internal/controller"
	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/pkg/metrics"
	"ai-study-portal-be/internal/pkg/serverutils"
	"ai-study-portal-be/internal/repository/memory"
	"ai-study-portal-be/internal/repository/unitofwork"
	"ai-study-portal-be/internal/service"
	"ai-study-portal-be/internal/websocket"
	"ai-study-portal-be/pkg/llm"
	"ai-study-portal-be/pkg/llm/factory"
	"ai-study-portal-be/pkg/rag/document"
	"ai-study-portal-be/pkg/rag/history"
	"ai-study-portal-be/pkg/rag/orchestrator"
	"ai-study-portal-be/pkg/rag/prompt"
	"ai-study-portal-be/pkg/rag/response"
	"ai-study-portal-be/pkg/rag/session"

	pktNats "ai-study-portal-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	ActivityService service.IActivityService
	WebSocketHub    *websocket.Hub

	Logger   logger.ILogger
	Registry *prometheus.Registry

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	llmLogger := logger.NewIsolatedLogger("logs/llm_rag.log")
	wsLogger := logger.NewIsolatedLogger("logs/realtime.log")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	c := &Container{Logger: sysLogger, Registry: registry}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	// NATS
	var bus service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "NATS publisher unavailable, turn events stay local", map[string]interface{}{"error": err.Error()})
	} else {
		bus = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	var sub service.EventSubscriber
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "NATS subscriber unavailable, activity projection disabled", map[string]interface{}{"error": err.Error()})
	} else {
		sub = natsSub
		c.closers = append(c.closers, natsSub.Close)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		sysLogger.Warn("Bootstrap", "Redis unreachable at startup", map[string]interface{}{"error": err.Error()})
	}
	cancel()
	c.closers = append(c.closers, func() { _ = rdb.Close() })

	// WebSocket Hub
	wsHub := websocket.NewHub(rdb, cfg.App.InstanceID, wsLogger)
	c.WebSocketHub = wsHub

	// 4. Generation
	provider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		OpenAIKey:     cfg.Keys.OpenAI,
		HFBaseURL:     cfg.Ai.HuggingFaceBaseURL,
		HFKey:         cfg.Keys.HuggingFace,
		GeminiKey:     cfg.Keys.GoogleGemini,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	generator := llm.NewClient(provider, llm.ClientConfig{
		AttemptTimeout: cfg.Ai.AttemptTimeout,
		RetryBackoff:   cfg.Ai.RetryBackoff,
	}, llmLogger, m)

	// 5. Sessions & Documents
	sessionRepo := memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval)
	sessionManager := session.NewManager(sessionRepo, history.NewArchive(uowFactory), sysLogger, m)
	documentStore := document.NewStore(uowFactory, document.NewTextCache(rdb, cfg.Session.DocCacheTTL), sysLogger)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Session.TurnTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Session.TurnTopic, wsHub, bus, wsLogger, m)
	c.ActivityService = service.NewActivityService(rdb, sub, sysLogger)

	orch := orchestrator.NewOrchestrator(
		sessionManager,
		documentStore,
		prompt.NewComposer(prompt.Config{
			HistoryWindow: cfg.Session.HistoryWindow,
			ContextBudget: cfg.Session.ContextBudget,
		}),
		generator,
		response.NewInterpreter(llmLogger),
		publisherService,
		llmLogger,
		m,
		orchestrator.Config{Timeout: cfg.Ai.OrchestrationTimeout},
	)

	chatService := service.NewChatService(orch, sessionManager, c.ActivityService, sysLogger)

	// 7. Controllers
	c.ChatController = controller.NewChatController(
		chatService,
		wsHub,
		serverutils.IdentityMiddleware(cfg.App.JWTSecret),
		wsLogger,
	)

	c.closers = append(c.closers, func() {
		_ = sysLogger.Sync()
		_ = llmLogger.Sync()
		_ = wsLogger.Sync()
	})

	return c, nil
}

// Close releases connections in reverse order of creation
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
