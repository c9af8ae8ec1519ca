package admin

import (
	"context"
	"fmt"
	"os"

	"github.com/cloo-solutions/nutrikb/internal/config"
	"github.com/cloo-solutions/nutrikb/internal/database"
	"github.com/cloo-solutions/nutrikb/internal/logger"
	"github.com/cloo-solutions/nutrikb/internal/openai"
	"github.com/cloo-solutions/nutrikb/internal/repository"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/cloo-solutions/nutrikb/internal/storage"
	"github.com/cloo-solutions/nutrikb/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds the wired services shared by serve and the kb commands.
type app struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	knowledge     *service.KnowledgeService
	indexer       *service.Indexer
	retriever     *service.Retriever
	rules         *service.RuleEngine
	consultations *service.ConsultationService
}

type appOptions struct {
	migrate bool
}

// initRuntime sets up logging and, when a DSN is configured, Sentry.
// The returned function flushes telemetry.
func initRuntime(cfg *config.Config) func() {
	logger.Init(&logger.Config{
		Level:      cfg.LogLevel,
		Output:     os.Stderr,
		JSON:       cfg.LogJSON,
		TimeFormat: "15:04:05",
	})

	if cfg.SentryDSN == "" {
		return func() {}
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.SampleRate(cfg.Environment),
		Debug:            cfg.Debug,
	})
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		return func() {}
	}
	return shutdown
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database")

	if opts.migrate {
		if err := database.Migrate(cfg.DatabaseURL, database.DefaultMigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		pool.Close()
		return nil, err
	}

	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	consultationRepo := repository.NewConsultationRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// A nil client reports ConfigurationError on every call, so ingestion
	// and rule-based recommendations still work without credentials.
	var aiClient *openai.Client
	creds, err := cfg.EmbeddingCredentials()
	if err != nil {
		logger.Warn("embedding service disabled", "reason", err)
	} else {
		aiClient, err = openai.NewClient(openai.Config{
			APIKey:          creds.APIKey,
			BaseURL:         creds.BaseURL,
			EmbeddingModel:  goopenai.EmbeddingModel(creds.EmbeddingModel),
			CompletionModel: creds.CompletionModel,
			MaxInputChars:   creds.MaxInputChars,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
	}

	var index service.SimilarityIndex
	switch cfg.Similarity {
	case config.SimilarityPgvector:
		index = service.NewPgvectorIndex(knowledgeRepo)
	default:
		index = service.NewBruteForceIndex(knowledgeRepo)
	}

	k := cfg.Knowledge()
	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, txRunner, service.ChunkConfig{
		Size:    k.ChunkSize,
		Overlap: k.ChunkOverlap,
	})

	if cfg.HasS3() {
		archive, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info("source archive ready", "bucket", cfg.S3Bucket)
		knowledgeSvc.WithArchive(archive)
	}

	retriever := service.NewRetriever(index, aiClient, service.RetrieverConfig{
		TopK:            k.TopK,
		SnippetMaxChars: k.SnippetMaxChars,
	})
	rules := service.NewRuleEngine(catalog)

	return &app{
		cfg:           cfg,
		pool:          pool,
		knowledge:     knowledgeSvc,
		indexer:       service.NewIndexer(knowledgeRepo, aiClient, k.BatchSize),
		retriever:     retriever,
		rules:         rules,
		consultations: service.NewConsultationService(consultationRepo, txRunner, retriever, rules, aiClient),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// loadApp is the common entry for commands that need the database.
func loadApp(ctx context.Context, opts appOptions) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	shutdown := initRuntime(cfg)

	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		shutdown()
	}, nil
}
