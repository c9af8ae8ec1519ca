package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/logger"
	"github.com/cloo-solutions/nutrikb/internal/telemetry"
)

const DefaultIndexBatchSize = 64

// IndexResult reports the progress of one index run. Total is the number of
// unembedded chunks found when the run started.
type IndexResult struct {
	Embedded  int `json:"embedded"`
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// Indexer embeds chunks that do not have an embedding yet.
type Indexer struct {
	repo      KnowledgeRepositoryInterface
	embedder  Embedder
	batchSize int
}

func NewIndexer(repo KnowledgeRepositoryInterface, embedder Embedder, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultIndexBatchSize
	}
	return &Indexer{repo: repo, embedder: embedder, batchSize: batchSize}
}

// BuildIndex embeds the unembedded chunks in batches of at most batchSize
// (the indexer's default when batchSize <= 0). Embeddings saved before a
// failure stay saved; the error then carries the partial counts and the
// result is returned alongside it. A missing embedding configuration is
// returned as is. Cancellation is honoured between batches.
func (ix *Indexer) BuildIndex(ctx context.Context, batchSize int) (*IndexResult, error) {
	if batchSize <= 0 {
		batchSize = ix.batchSize
	}
	ctx, span := telemetry.StartSpan(ctx, "Indexer.BuildIndex", telemetry.SpanAttributes{
		Operation: "index",
		Count:     batchSize,
	})
	defer span.End()

	pending, err := ix.repo.ListUnembeddedChunks(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("list unembedded chunks: %w", err)
	}

	result := &IndexResult{Total: len(pending), Remaining: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	for start := 0; start < len(pending); start += batchSize {
		if err := ctx.Err(); err != nil {
			logger.Warn("index run cancelled", "embedded", result.Embedded, "remaining", result.Remaining)
			return result, err
		}

		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			span.SetError(err)
			if domain.IsConfigurationError(err) {
				return result, err
			}
			return result, domain.NewIndexIncompleteError(result.Embedded, result.Remaining, err)
		}
		if len(vecs) != len(batch) {
			err := domain.NewServiceError("malformed embedding response",
				fmt.Errorf("got %d vectors for %d chunks", len(vecs), len(batch)))
			span.SetError(err)
			return result, domain.NewIndexIncompleteError(result.Embedded, result.Remaining, err)
		}

		for i, c := range batch {
			if err := ix.repo.UpdateChunkEmbedding(ctx, c.DocumentID, c.ChunkIndex, vecs[i]); err != nil {
				span.SetError(err)
				return result, domain.NewIndexIncompleteError(result.Embedded, result.Remaining,
					fmt.Errorf("save embedding for %s: %w", c.Key(), err))
			}
			result.Embedded++
			result.Remaining--
		}

		logger.Debug("index batch embedded", "embedded", result.Embedded, "remaining", result.Remaining)
	}

	logger.Info("index built", "embedded", result.Embedded, "total", result.Total)
	return result, nil
}
