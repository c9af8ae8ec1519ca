package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/extract"
	"github.com/cloo-solutions/nutrikb/internal/logger"
	"github.com/cloo-solutions/nutrikb/internal/pagination"
	"github.com/cloo-solutions/nutrikb/internal/telemetry"
	"github.com/google/uuid"
)

// KnowledgeRepositoryInterface defines the repository interface for the knowledge store
type KnowledgeRepositoryInterface interface {
	AddDocument(ctx context.Context, d *domain.Document) (string, error)
	UpsertChunk(ctx context.Context, c domain.Chunk) error
	ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	ListChunks(ctx context.Context, withEmbeddings bool) ([]domain.Chunk, error)
	ListUnembeddedChunks(ctx context.Context) ([]domain.Chunk, error)
	ListEmbeddedChunks(ctx context.Context) ([]domain.Chunk, error)
	CountEmbeddedChunks(ctx context.Context) (int, error)
	NearestChunks(ctx context.Context, query []float32, k int) ([]ScoredChunk, error)
	UpdateChunkEmbedding(ctx context.Context, documentID string, chunkIndex int, embedding []float32) error
	Clear(ctx context.Context) ([]string, error)
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// SourceArchive keeps a copy of each ingested document's text.
type SourceArchive interface {
	PutText(ctx context.Context, key, text string) error
	DeleteObject(ctx context.Context, key string) error
}

// ArchiveKey returns the object key holding a document's source text.
func ArchiveKey(documentID string) string {
	return "knowledge/" + documentID + ".txt"
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService handles ingestion and maintenance of the knowledge bank
type KnowledgeService struct {
	repo     KnowledgeRepositoryInterface
	txRunner TxRunner
	archive  SourceArchive
	uuidGen  UUIDGenerator
	chunking ChunkConfig
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(repo KnowledgeRepositoryInterface, txRunner TxRunner, chunking ChunkConfig) *KnowledgeService {
	return NewKnowledgeServiceWithUUIDGen(repo, txRunner, chunking, &DefaultUUIDGenerator{})
}

// NewKnowledgeServiceWithUUIDGen creates a new KnowledgeService with custom UUID generator (for testing)
func NewKnowledgeServiceWithUUIDGen(
	repo KnowledgeRepositoryInterface,
	txRunner TxRunner,
	chunking ChunkConfig,
	uuidGen UUIDGenerator,
) *KnowledgeService {
	if chunking.Size <= 0 {
		chunking = DefaultChunkConfig()
	}
	return &KnowledgeService{
		repo:     repo,
		txRunner: txRunner,
		uuidGen:  uuidGen,
		chunking: chunking,
	}
}

// WithArchive enables archiving of source text. A nil archive disables it.
func (s *KnowledgeService) WithArchive(archive SourceArchive) *KnowledgeService {
	s.archive = archive
	return s
}

// IngestInput represents one document to add to the knowledge bank
type IngestInput struct {
	Title   string
	Content string
}

type IngestResult struct {
	Document *domain.Document
	Chunks   int
}

// Ingest stores a document and its unembedded chunks. The document row and
// all of its chunks are written in one transaction.
func (s *KnowledgeService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Ingest", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "title is required")
	}
	texts := chunkWith(input.Content, s.chunking)
	if len(texts) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), title, "", time.Now().UTC())
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{DocumentID: doc.ID, ChunkIndex: i, Text: t, CreatedAt: doc.CreatedAt}
	}
	if err := domain.ValidateChunks(doc.ID, chunks); err != nil {
		return nil, err
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		repo := repos.Knowledge()
		if _, err := repo.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
		for _, c := range chunks {
			if err := repo.UpsertChunk(ctx, c); err != nil {
				return fmt.Errorf("add chunk %s: %w", c.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.PutText(ctx, ArchiveKey(doc.ID), input.Content); err != nil {
			// the knowledge bank itself is consistent; only the copy is missing
			logger.Warn("failed to archive document source", "document_id", doc.ID, "err", err)
		}
	}

	logger.Info("document ingested", "document_id", doc.ID, "title", doc.Title, "chunks", len(chunks))
	return &IngestResult{Document: doc, Chunks: len(chunks)}, nil
}

// IngestFile extracts text from an uploaded file and ingests it under the
// file's base name.
func (s *KnowledgeService) IngestFile(ctx context.Context, filename string, r io.Reader) (*IngestResult, error) {
	text, err := extract.Text(filename, r)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "could not read "+filepath.Base(filename), err)
	}
	return s.Ingest(ctx, IngestInput{Title: filepath.Base(filename), Content: text})
}

type ListDocumentsInput struct {
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

func (s *KnowledgeService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.ListDocuments", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	limit := pagination.ClampLimit(input.Limit)

	result, err := s.repo.ListDocuments(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// ListChunks returns every chunk in ingestion order.
func (s *KnowledgeService) ListChunks(ctx context.Context, withEmbeddings bool) ([]domain.Chunk, error) {
	return s.repo.ListChunks(ctx, withEmbeddings)
}

// Clear removes every document and chunk. Archived sources are removed
// afterwards; failures there are logged, not returned.
func (s *KnowledgeService) Clear(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Clear", telemetry.SpanAttributes{
		Operation: "clear",
	})
	defer span.End()

	var ids []string
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		var err error
		ids, err = repos.Knowledge().Clear(ctx)
		return err
	})
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	if s.archive != nil {
		for _, id := range ids {
			if err := s.archive.DeleteObject(ctx, ArchiveKey(id)); err != nil {
				logger.Warn("failed to delete archived source", "document_id", id, "err", err)
			}
		}
	}

	logger.Info("knowledge bank cleared", "documents", len(ids))
	return len(ids), nil
}
