package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/answer"
	rediscache "github.com/travel-rag/backend/internal/cache/redis"
	"github.com/travel-rag/backend/internal/ingestion"
	"github.com/travel-rag/backend/internal/llm"
	"github.com/travel-rag/backend/internal/metrics"
	"github.com/travel-rag/backend/internal/retrieval"
	"github.com/travel-rag/backend/internal/session"
	"github.com/travel-rag/backend/internal/shell"
	"github.com/travel-rag/backend/internal/storage/sqlite"
	"github.com/travel-rag/backend/internal/vector/milvus"
	"github.com/travel-rag/backend/pkg/config"
	appLogger "github.com/travel-rag/backend/pkg/logger"
)

var cli struct {
	Ask    AskCmd    `cmd:"" help:"Ask a single question and print the answer with full sources."`
	Chat   ChatCmd   `cmd:"" help:"Start an interactive conversation."`
	Ingest IngestCmd `cmd:"" help:"Collect, enrich and index attractions for a city."`
}

type AskCmd struct {
	Question string `arg:"" help:"The question to ask."`
	Session  string `help:"Session identifier. A fresh one is generated when empty."`
}

type ChatCmd struct {
	Session string `help:"Session identifier. A fresh one is generated when empty."`
}

type IngestCmd struct {
	City string    `arg:"" help:"City name, used for artifact file names."`
	BBox []float64 `help:"Bounding box as lon-min,lat-min,lon-max,lat-max." required:""`
}

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg      *config.Config
	pipeline *answer.Pipeline
	llm      *llm.Client
	milvus   *milvus.Client
	sqlite   *sqlite.Client
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metrics.Init()

	a := &app{cfg: cfg}
	a.closers = append(a.closers, func() { appLogger.Sync() })

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	a.sqlite = sqliteClient
	a.closers = append(a.closers, func() { sqliteClient.Close() })

	if err := sqliteClient.InitSchema(); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	milvusClient, err := milvus.NewClient(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}
	a.milvus = milvusClient
	a.closers = append(a.closers, func() { milvusClient.Close() })

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	var embeddingCache retrieval.EmbeddingCache
	redisClient, err := rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTLSec)
	if err != nil {
		appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
	} else {
		embeddingCache = redisClient
		a.closers = append(a.closers, func() { redisClient.Close() })
	}

	a.llm = llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	gateway := retrieval.NewVectorGateway(a.llm, milvusClient, embeddingCache)
	a.pipeline = answer.NewPipeline(gateway, answer.NewLLMGenerator(a.llm), session.NewStore(), sqliteClient, cfg.RAG.TopK)

	return a, nil
}

func sessionOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func (cmd *AskCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	sh := shell.New(a.pipeline, sessionOrNew(cmd.Session), os.Stdin, os.Stdout)
	return sh.AskOnce(interruptContext(), cmd.Question)
}

func (cmd *ChatCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	sh := shell.New(a.pipeline, sessionOrNew(cmd.Session), os.Stdin, os.Stdout)
	return sh.Run(interruptContext())
}

func (cmd *IngestCmd) Run() error {
	if len(cmd.BBox) != 4 {
		return fmt.Errorf("bbox needs exactly 4 values, got %d", len(cmd.BBox))
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	geoapifyClient := ingestion.NewGeoapifyClient(
		a.cfg.Geoapify.BaseURL,
		a.cfg.Geoapify.APIKey,
		a.cfg.Geoapify.Categories,
		a.cfg.Geoapify.Limit,
		a.cfg.Geoapify.TimeoutSec,
		a.cfg.RAG.DataDir,
	)
	wikipediaClient := ingestion.NewWikipediaClient(
		a.cfg.Wikipedia.APIBase,
		a.cfg.Wikipedia.ContactEmail,
		a.cfg.Wikipedia.RateLimitMS,
		a.cfg.Wikipedia.TimeoutSec,
	)
	defer wikipediaClient.Stop()

	processor := ingestion.NewProcessor(geoapifyClient, wikipediaClient, a.llm, a.milvus, a.sqlite, a.cfg.RAG.DataDir)

	run, err := processor.IngestCity(interruptContext(), cmd.City, ingestion.BBox{
		LonMin: cmd.BBox[0],
		LatMin: cmd.BBox[1],
		LonMax: cmd.BBox[2],
		LatMax: cmd.BBox[3],
	})
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s: fetched=%d with_wikipedia=%d enriched=%d missing_pages=%d fetch_failures=%d indexed=%d\n",
		run.City, run.Fetched, run.WithWikipedia, run.Enriched, run.MissingPages, run.FetchFailures, run.Indexed)
	return nil
}

// interruptContext is cancelled on SIGINT or SIGTERM so long ingestion
// runs stop cleanly.
func interruptContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		cancel()
	}()
	return ctx
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("travelrag"),
		kong.Description("Travel attraction question answering over a local vector index."),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
