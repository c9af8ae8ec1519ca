package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/pagination"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// KnowledgeRepository stores documents and their chunks. Embeddings live in
// a pgvector column and are read back through its text form.
type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx dbtx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

const chunkColumns = `document_id, chunk_index, text, created_at`

// AddDocument inserts a document, assigning an ID when it has none.
func (r *KnowledgeRepository) AddDocument(ctx context.Context, d *domain.Document) (string, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, title, content, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Title, d.Content, d.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// UpsertChunk writes a chunk, replacing any chunk stored under the same key.
func (r *KnowledgeRepository) UpsertChunk(ctx context.Context, c domain.Chunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var embeddedAt *time.Time
	if c.HasEmbedding() {
		now := time.Now().UTC()
		embeddedAt = &now
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_chunks (document_id, chunk_index, text, embedding, created_at, embedded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (document_id, chunk_index) DO UPDATE
		 SET text = EXCLUDED.text, embedding = EXCLUDED.embedding, embedded_at = EXCLUDED.embedded_at`,
		c.DocumentID, c.ChunkIndex, c.Text, nullableVector(c.Embedding), createdAt, embeddedAt,
	)
	return err
}

func (r *KnowledgeRepository) ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, content, created_at
			 FROM documents
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, content, created_at
			 FROM documents
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, nextCursor, hasMore := pagination.Trim(items, limit, func(d *domain.Document) (string, time.Time) {
		return d.ID, d.CreatedAt
	})

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListChunks returns all chunks in ingestion order. Embeddings are only
// decoded when withEmbeddings is set.
func (r *KnowledgeRepository) ListChunks(ctx context.Context, withEmbeddings bool) ([]domain.Chunk, error) {
	if withEmbeddings {
		return r.queryChunksWithEmbeddings(ctx, `TRUE`)
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM knowledge_chunks
		 ORDER BY created_at, document_id, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *KnowledgeRepository) ListUnembeddedChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM knowledge_chunks
		 WHERE embedding IS NULL
		 ORDER BY created_at, document_id, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *KnowledgeRepository) ListEmbeddedChunks(ctx context.Context) ([]domain.Chunk, error) {
	return r.queryChunksWithEmbeddings(ctx, `embedding IS NOT NULL`)
}

func (r *KnowledgeRepository) queryChunksWithEmbeddings(ctx context.Context, where string) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`, embedding::text
		 FROM knowledge_chunks
		 WHERE `+where+`
		 ORDER BY created_at, document_id, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var embedding *string
		if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Text, &c.CreatedAt, &embedding); err != nil {
			return nil, err
		}
		if c.Embedding, err = parseVector(embedding); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeDataIntegrity, "stored embedding for "+c.Key().String()+" is unreadable", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *KnowledgeRepository) CountEmbeddedChunks(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks WHERE embedding IS NOT NULL`).Scan(&n)
	return n, err
}

// NearestChunks ranks embedded chunks by cosine distance to query. Chunks
// whose dimensionality differs from the query are skipped by the database.
func (r *KnowledgeRepository) NearestChunks(ctx context.Context, query []float32, k int) ([]service.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`, embedding::text, 1 - (embedding <=> $1) AS score
		 FROM knowledge_chunks
		 WHERE embedding IS NOT NULL AND vector_dims(embedding) = $2
		 ORDER BY embedding <=> $1, created_at, document_id, chunk_index
		 LIMIT $3`,
		pgvector.NewVector(query), len(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []service.ScoredChunk
	for rows.Next() {
		var h service.ScoredChunk
		var embedding *string
		var score float64
		if err := rows.Scan(&h.Chunk.DocumentID, &h.Chunk.ChunkIndex, &h.Chunk.Text, &h.Chunk.CreatedAt, &embedding, &score); err != nil {
			return nil, err
		}
		if h.Chunk.Embedding, err = parseVector(embedding); err != nil {
			return nil, err
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *KnowledgeRepository) UpdateChunkEmbedding(ctx context.Context, documentID string, chunkIndex int, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks SET embedding = $1, embedded_at = $2
		 WHERE document_id = $3 AND chunk_index = $4`,
		pgvector.NewVector(embedding), time.Now().UTC(), documentID, chunkIndex,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// Clear deletes every chunk and document and returns the removed document IDs.
// Callers wanting atomicity run it inside a transaction.
func (r *KnowledgeRepository) Clear(ctx context.Context) ([]string, error) {
	if _, err := r.db.Exec(ctx, `DELETE FROM knowledge_chunks`); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `DELETE FROM documents RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
