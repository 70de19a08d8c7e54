package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/answer"
	"github.com/travel-rag/backend/internal/api/handlers"
	rediscache "github.com/travel-rag/backend/internal/cache/redis"
	"github.com/travel-rag/backend/internal/ingestion"
	"github.com/travel-rag/backend/internal/llm"
	"github.com/travel-rag/backend/internal/metrics"
	"github.com/travel-rag/backend/internal/middleware/ratelimit"
	"github.com/travel-rag/backend/internal/retrieval"
	"github.com/travel-rag/backend/internal/session"
	"github.com/travel-rag/backend/internal/storage/sqlite"
	"github.com/travel-rag/backend/internal/vector/milvus"
	"github.com/travel-rag/backend/pkg/config"
	appLogger "github.com/travel-rag/backend/pkg/logger"
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

	appLogger.Info("Starting travel attraction API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	// Redis only caches embeddings, so a dead Redis degrades to
	// uncached operation instead of stopping startup.
	var embeddingCache retrieval.EmbeddingCache
	redisClient, err := rediscache.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.TTLSec,
	)
	if err != nil {
		appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
	} else {
		embeddingCache = redisClient
		defer redisClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	gateway := retrieval.NewVectorGateway(llmClient, milvusClient, embeddingCache)
	sessions := session.NewStore()
	pipeline := answer.NewPipeline(gateway, answer.NewLLMGenerator(llmClient), sessions, sqliteClient, cfg.RAG.TopK)

	geoapifyClient := ingestion.NewGeoapifyClient(
		cfg.Geoapify.BaseURL,
		cfg.Geoapify.APIKey,
		cfg.Geoapify.Categories,
		cfg.Geoapify.Limit,
		cfg.Geoapify.TimeoutSec,
		cfg.RAG.DataDir,
	)
	wikipediaClient := ingestion.NewWikipediaClient(
		cfg.Wikipedia.APIBase,
		cfg.Wikipedia.ContactEmail,
		cfg.Wikipedia.RateLimitMS,
		cfg.Wikipedia.TimeoutSec,
	)
	defer wikipediaClient.Stop()

	processor := ingestion.NewProcessor(
		geoapifyClient,
		wikipediaClient,
		llmClient,
		milvusClient,
		sqliteClient,
		cfg.RAG.DataDir,
	)

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
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 60,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	askHandler := handlers.NewAskHandler(pipeline)
	sessionHandler := handlers.NewSessionHandler(pipeline)
	ingestHandler := handlers.NewIngestHandler(processor)

	api := app.Group("/api/v1")

	api.Post("/ask", limiter.Middleware(), askHandler.HandleAsk)
	api.Get("/sessions", sessionHandler.ListSessions)
	api.Get("/sessions/:id/history", sessionHandler.GetHistory)
	api.Delete("/sessions/:id", sessionHandler.ClearSession)
	api.Delete("/sessions", sessionHandler.ClearAllSessions)
	api.Post("/ingest", ingestHandler.HandleIngest)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

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
