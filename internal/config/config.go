package config

import (
	"fmt"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	SimilarityBruteForce = "bruteforce"
	SimilarityPgvector   = "pgvector"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"nutrikb-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-large"`
	CompletionModel string `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`
	EmbedMaxChars   int    `envconfig:"EMBED_MAX_CHARS" default:"6000"`

	ChunkSize       int    `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap    int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	IndexBatchSize  int    `envconfig:"INDEX_BATCH_SIZE" default:"64"`
	RetrieveTopK    int    `envconfig:"RETRIEVE_TOP_K" default:"3"`
	SnippetMaxChars int    `envconfig:"SNIPPET_MAX_CHARS" default:"800"`
	Similarity      string `envconfig:"SIMILARITY" default:"bruteforce"`

	CatalogPath   string        `envconfig:"CATALOG_PATH"`
	IndexInterval time.Duration `envconfig:"INDEX_INTERVAL" default:"0s"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON     bool   `envconfig:"LOG_JSON" default:"false"`
}

// EmbeddingCredentials is the resolved access to the embedding and completion service.
type EmbeddingCredentials struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	CompletionModel string
	MaxInputChars   int
}

// KnowledgeSettings groups the knowledge-bank tunables.
type KnowledgeSettings struct {
	ChunkSize       int
	ChunkOverlap    int
	BatchSize       int
	TopK            int
	SnippetMaxChars int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("NUTRIKB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the knowledge-bank tunables.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid config: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.IndexBatchSize <= 0 {
		return fmt.Errorf("invalid config: INDEX_BATCH_SIZE must be positive")
	}
	if c.RetrieveTopK <= 0 {
		return fmt.Errorf("invalid config: RETRIEVE_TOP_K must be positive")
	}
	switch c.Similarity {
	case SimilarityBruteForce, SimilarityPgvector:
	default:
		return fmt.Errorf("invalid config: SIMILARITY must be %q or %q", SimilarityBruteForce, SimilarityPgvector)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// EmbeddingCredentials resolves the embedding service access once. Callers
// get a ConfigurationError instead of a client that would fail per call.
func (c *Config) EmbeddingCredentials() (EmbeddingCredentials, error) {
	if !c.HasOpenAI() {
		return EmbeddingCredentials{}, domain.NewConfigurationError("NUTRIKB_OPENAI_API_KEY is not set")
	}
	return EmbeddingCredentials{
		APIKey:          c.OpenAIAPIKey,
		BaseURL:         c.OpenAIBaseURL,
		EmbeddingModel:  c.EmbeddingModel,
		CompletionModel: c.CompletionModel,
		MaxInputChars:   c.EmbedMaxChars,
	}, nil
}

func (c *Config) Knowledge() KnowledgeSettings {
	return KnowledgeSettings{
		ChunkSize:       c.ChunkSize,
		ChunkOverlap:    c.ChunkOverlap,
		BatchSize:       c.IndexBatchSize,
		TopK:            c.RetrieveTopK,
		SnippetMaxChars: c.SnippetMaxChars,
	}
}
