package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/telemetry"
)

const (
	DefaultTopK            = 3
	DefaultSnippetMaxChars = 800
	snippetSeparator       = "\n\n"
)

// Embedder turns texts into unit-length vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type RetrieverConfig struct {
	TopK            int
	SnippetMaxChars int
}

// Retriever produces prompt context from the knowledge bank.
type Retriever struct {
	index    SimilarityIndex
	embedder Embedder
	cfg      RetrieverConfig
}

func NewRetriever(index SimilarityIndex, embedder Embedder, cfg RetrieverConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SnippetMaxChars <= 0 {
		cfg.SnippetMaxChars = DefaultSnippetMaxChars
	}
	return &Retriever{index: index, embedder: embedder, cfg: cfg}
}

// Search returns up to topK chunks ranked by similarity to query. An empty
// index yields no hits and does not call the embedding service.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Search", telemetry.SpanAttributes{
		Operation: "retrieve",
		Count:     topK,
	})
	defer span.End()

	if topK <= 0 {
		topK = r.cfg.TopK
	}

	size, err := r.index.Size(ctx)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewContextUnavailableError(err)
	}
	if size == 0 {
		return nil, nil
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.SetError(err)
		if domain.IsConfigurationError(err) {
			return nil, err
		}
		return nil, domain.NewContextUnavailableError(err)
	}

	hits, err := r.index.Search(ctx, vecs[0], topK)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewContextUnavailableError(err)
	}
	return hits, nil
}

// Retrieve returns the top snippets joined by blank lines, or "" when the
// knowledge bank has no embedded chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	hits, err := r.Search(ctx, query, topK)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, r.Snippet(h.Chunk.Text))
	}
	return strings.Join(parts, snippetSeparator), nil
}

// Snippet trims text and caps it at the configured number of characters.
func (r *Retriever) Snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= r.cfg.SnippetMaxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= r.cfg.SnippetMaxChars {
		return text
	}
	return string(runes[:r.cfg.SnippetMaxChars])
}
