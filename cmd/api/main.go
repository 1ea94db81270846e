package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/api/handlers"
	rediscache "github.com/Ramez-101/doc-ingestion/internal/cache/redis"
	"github.com/Ramez-101/doc-ingestion/internal/embedding"
	"github.com/Ramez-101/doc-ingestion/internal/feedback"
	"github.com/Ramez-101/doc-ingestion/internal/ingestion"
	"github.com/Ramez-101/doc-ingestion/internal/metrics"
	"github.com/Ramez-101/doc-ingestion/internal/middleware/ratelimit"
	"github.com/Ramez-101/doc-ingestion/internal/middleware/security"
	"github.com/Ramez-101/doc-ingestion/internal/middleware/validation"
	"github.com/Ramez-101/doc-ingestion/internal/query"
	"github.com/Ramez-101/doc-ingestion/internal/storage/sqlite"
	"github.com/Ramez-101/doc-ingestion/internal/vector"
	"github.com/Ramez-101/doc-ingestion/internal/vector/memory"
	"github.com/Ramez-101/doc-ingestion/internal/vector/milvus"
	"github.com/Ramez-101/doc-ingestion/pkg/config"
	appLogger "github.com/Ramez-101/doc-ingestion/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting document Q&A API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var store vector.Store
	switch cfg.Vector.Backend {
	case "milvus":
		milvusClient, err := milvus.NewClient(cfg.Milvus.Endpoint)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()
		store = milvusClient
	default:
		store = memory.NewStore()
	}

	embedder, err := embedding.Resolve(embedding.Options{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		FastModel:  cfg.Embedding.FastModel,
		Quality:    cfg.Embedding.Quality,
		Dim:        cfg.Embedding.Dim,
		TimeoutSec: cfg.Embedding.TimeoutSec,
	})
	if err != nil {
		appLogger.Fatal("Failed to resolve embedding provider", zap.Error(err))
	}

	chunker, err := ingestion.NewChunker(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	if err != nil {
		appLogger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	pipeline := ingestion.NewPipeline(sqliteClient, store, embedder, chunker, cfg.Ingestion.MaxDocumentBytes)

	cacheTTL := time.Duration(cfg.Query.CacheTTLHours) * time.Hour
	var responseCache query.Cache
	switch cfg.Query.CacheBackend {
	case "redis":
		redisCache, err := rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cacheTTL)
		if err != nil {
			appLogger.Fatal("Failed to create Redis cache", zap.Error(err))
		}
		defer redisCache.Close()
		responseCache = redisCache
	default:
		responseCache = query.NewLRUCache(cfg.Query.CacheCapacity, cacheTTL)
	}

	engine := query.NewEngine(
		sqliteClient,
		store,
		embedder,
		responseCache,
		cfg.Vector.CollectionName,
		cfg.Query.TopK,
		cfg.Query.ConfidenceThreshold,
	)

	feedbackManager, err := feedback.NewManager(cfg.Feedback.Dir, cfg.Feedback.CommonIssuesTopN, cfg.Feedback.RecentWindow)
	if err != nil {
		appLogger.Fatal("Failed to create feedback manager", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Ingestion.MaxDocumentBytes,
		Logger:          appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(engine)
	documentHandler := handlers.NewDocumentHandler(pipeline, cfg.Vector.CollectionName)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackManager)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/documents", documentHandler.IngestDocument)

	api.Post("/ask", queryHandler.HandleAsk)
	api.Get("/ask/history", queryHandler.GetHistory)

	api.Post("/feedback", feedbackHandler.SubmitFeedback)
	api.Get("/feedback/summary", feedbackHandler.GetSummary)
	api.Get("/feedback/recent", feedbackHandler.GetRecent)
	api.Post("/feedback/export", feedbackHandler.ExportFeedback)

	api.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
