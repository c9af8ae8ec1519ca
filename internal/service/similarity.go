package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/vector"
)

// ScoredChunk is a retrieval hit. Score is the cosine similarity to the query.
type ScoredChunk struct {
	Chunk domain.Chunk
	Score float32
}

// SimilarityIndex ranks embedded chunks against a unit-length query vector.
type SimilarityIndex interface {
	Size(ctx context.Context) (int, error)
	Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error)
}

// EmbeddedChunkSource is the part of the knowledge store a brute-force scan needs.
type EmbeddedChunkSource interface {
	ListEmbeddedChunks(ctx context.Context) ([]domain.Chunk, error)
	CountEmbeddedChunks(ctx context.Context) (int, error)
}

// BruteForceIndex scores every embedded chunk in memory. Ties keep the
// store's ingestion order.
type BruteForceIndex struct {
	source EmbeddedChunkSource
}

func NewBruteForceIndex(source EmbeddedChunkSource) *BruteForceIndex {
	return &BruteForceIndex{source: source}
}

func (b *BruteForceIndex) Size(ctx context.Context) (int, error) {
	return b.source.CountEmbeddedChunks(ctx)
}

func (b *BruteForceIndex) Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	chunks, err := b.source.ListEmbeddedChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list embedded chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	scores := make([]float32, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != len(query) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeDataIntegrity,
				fmt.Sprintf("chunk %s has %d dimensions, query has %d", c.Key(), len(c.Embedding), len(query)),
				domain.ErrDimensionMismatch)
		}
		s, err := vector.Dot(vector.Normalize(c.Embedding), query)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}

	idxs := vector.TopK(scores, k)
	out := make([]ScoredChunk, len(idxs))
	for i, idx := range idxs {
		out[i] = ScoredChunk{Chunk: chunks[idx], Score: scores[idx]}
	}
	return out, nil
}

// NearestChunkSource is the part of the knowledge store that can rank in the database.
type NearestChunkSource interface {
	NearestChunks(ctx context.Context, query []float32, k int) ([]ScoredChunk, error)
	CountEmbeddedChunks(ctx context.Context) (int, error)
}

// PgvectorIndex delegates ranking to the database's vector operators.
type PgvectorIndex struct {
	source NearestChunkSource
}

func NewPgvectorIndex(source NearestChunkSource) *PgvectorIndex {
	return &PgvectorIndex{source: source}
}

func (p *PgvectorIndex) Size(ctx context.Context) (int, error) {
	return p.source.CountEmbeddedChunks(ctx)
}

func (p *PgvectorIndex) Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	hits, err := p.source.NearestChunks(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w", err)
	}
	// the database orders by distance only
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}
