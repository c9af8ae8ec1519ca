package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKnowledgeRepository is a mock implementation of KnowledgeRepositoryInterface
type MockKnowledgeRepository struct {
	mock.Mock
}

func (m *MockKnowledgeRepository) AddDocument(ctx context.Context, d *domain.Document) (string, error) {
	args := m.Called(ctx, d)
	return args.String(0), args.Error(1)
}

func (m *MockKnowledgeRepository) UpsertChunk(ctx context.Context, c domain.Chunk) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockKnowledgeRepository) ListChunks(ctx context.Context, withEmbeddings bool) ([]domain.Chunk, error) {
	args := m.Called(ctx, withEmbeddings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockKnowledgeRepository) ListUnembeddedChunks(ctx context.Context) ([]domain.Chunk, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockKnowledgeRepository) ListEmbeddedChunks(ctx context.Context) ([]domain.Chunk, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockKnowledgeRepository) CountEmbeddedChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockKnowledgeRepository) NearestChunks(ctx context.Context, query []float32, k int) ([]ScoredChunk, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ScoredChunk), args.Error(1)
}

func (m *MockKnowledgeRepository) UpdateChunkEmbedding(ctx context.Context, documentID string, chunkIndex int, embedding []float32) error {
	args := m.Called(ctx, documentID, chunkIndex, embedding)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) Clear(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockSourceArchive is a mock implementation of SourceArchive
type MockSourceArchive struct {
	mock.Mock
}

func (m *MockSourceArchive) PutText(ctx context.Context, key, text string) error {
	args := m.Called(ctx, key, text)
	return args.Error(0)
}

func (m *MockSourceArchive) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

func newKnowledgeServiceForTest(repo *MockKnowledgeRepository, chunking ChunkConfig, uuids ...string) (*KnowledgeService, *testTxRunner) {
	tx := &testTxRunner{repos: &testTxRepos{knowledge: repo}}
	return NewKnowledgeServiceWithUUIDGen(repo, tx, chunking, NewMockUUIDGenerator(uuids...)), tx
}

func TestKnowledgeService_Ingest(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, tx := newKnowledgeServiceForTest(repo, ChunkConfig{Size: 4, Overlap: 1}, "doc-1")

	ctx := context.Background()
	repo.On("AddDocument", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.ID == "doc-1" && d.Title == "iron.txt" && d.Content == ""
	})).Return("doc-1", nil)
	for i, text := range []string{"abcd", "defg", "ghij"} {
		i, text := i, text
		repo.On("UpsertChunk", mock.Anything, mock.MatchedBy(func(c domain.Chunk) bool {
			return c.DocumentID == "doc-1" && c.ChunkIndex == i && c.Text == text && c.Embedding == nil
		})).Return(nil).Once()
	}

	result, err := svc.Ingest(ctx, IngestInput{Title: " iron.txt ", Content: "  abcdefghij \n"})

	require.NoError(t, err)
	assert.True(t, tx.called)
	assert.Equal(t, "doc-1", result.Document.ID)
	assert.Equal(t, 3, result.Chunks)
	repo.AssertExpectations(t)
}

func TestKnowledgeService_Ingest_EmptyContent(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, tx := newKnowledgeServiceForTest(repo, DefaultChunkConfig())

	result, err := svc.Ingest(context.Background(), IngestInput{Title: "blank.txt", Content: " \n\t"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	assert.False(t, tx.called)
	repo.AssertNotCalled(t, "AddDocument", mock.Anything, mock.Anything)
}

func TestKnowledgeService_Ingest_MissingTitle(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, _ := newKnowledgeServiceForTest(repo, DefaultChunkConfig())

	_, err := svc.Ingest(context.Background(), IngestInput{Content: "text"})

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
}

func TestKnowledgeService_Ingest_ChunkFailureAbortsTransaction(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, _ := newKnowledgeServiceForTest(repo, ChunkConfig{Size: 4, Overlap: 0}, "doc-1")

	ctx := context.Background()
	repo.On("AddDocument", mock.Anything, mock.Anything).Return("doc-1", nil)
	repo.On("UpsertChunk", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("UpsertChunk", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	result, err := svc.Ingest(ctx, IngestInput{Title: "t", Content: "abcdefgh"})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doc-1#1")
}

func TestKnowledgeService_Ingest_Archives(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	archive := new(MockSourceArchive)
	svc, _ := newKnowledgeServiceForTest(repo, DefaultChunkConfig(), "doc-9")
	svc.WithArchive(archive)

	ctx := context.Background()
	repo.On("AddDocument", mock.Anything, mock.Anything).Return("doc-9", nil)
	repo.On("UpsertChunk", mock.Anything, mock.Anything).Return(nil)
	archive.On("PutText", mock.Anything, "knowledge/doc-9.txt", "Zinc and appetite").Return(errors.New("bucket missing"))

	result, err := svc.Ingest(ctx, IngestInput{Title: "zinc.txt", Content: "Zinc and appetite"})

	require.NoError(t, err, "archive failures do not fail ingestion")
	assert.Equal(t, 1, result.Chunks)
	archive.AssertExpectations(t)
}

func TestKnowledgeService_IngestFile(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, _ := newKnowledgeServiceForTest(repo, DefaultChunkConfig(), "doc-2")

	ctx := context.Background()
	repo.On("AddDocument", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Title == "notes.txt"
	})).Return("doc-2", nil)
	repo.On("UpsertChunk", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.IngestFile(ctx, "/uploads/notes.txt", strings.NewReader("Magnesium helps sleep."))

	require.NoError(t, err)
	assert.Equal(t, "notes.txt", result.Document.Title)
}

func TestKnowledgeService_ListDocuments(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, _ := newKnowledgeServiceForTest(repo, DefaultChunkConfig())

	ctx := context.Background()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cursor := pagination.EncodeCursor("doc-1", ts)
	page := &DocumentPageResult{
		Items:      []*domain.Document{{ID: "doc-2", Title: "b"}},
		NextCursor: "",
		HasMore:    false,
	}
	repo.On("ListDocuments", mock.Anything, &pagination.Cursor{LastID: "doc-1", Timestamp: ts}, 20).Return(page, nil)

	out, err := svc.ListDocuments(ctx, ListDocumentsInput{Cursor: cursor})

	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.False(t, out.HasMore)
}

func TestKnowledgeService_ListDocuments_InvalidCursor(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, _ := newKnowledgeServiceForTest(repo, DefaultChunkConfig())

	_, err := svc.ListDocuments(context.Background(), ListDocumentsInput{Cursor: "%%%"})

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
}

func TestKnowledgeService_Clear(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	archive := new(MockSourceArchive)
	svc, tx := newKnowledgeServiceForTest(repo, DefaultChunkConfig())
	svc.WithArchive(archive)

	ctx := context.Background()
	repo.On("Clear", mock.Anything).Return([]string{"doc-1", "doc-2"}, nil)
	archive.On("DeleteObject", mock.Anything, "knowledge/doc-1.txt").Return(nil)
	archive.On("DeleteObject", mock.Anything, "knowledge/doc-2.txt").Return(errors.New("gone"))

	n, err := svc.Clear(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, tx.called)
	archive.AssertExpectations(t)
}

func TestKnowledgeService_Clear_Error(t *testing.T) {
	repo := new(MockKnowledgeRepository)
	svc, _ := newKnowledgeServiceForTest(repo, DefaultChunkConfig())

	ctx := context.Background()
	repo.On("Clear", mock.Anything).Return(nil, errors.New("lock timeout"))

	n, err := svc.Clear(ctx)

	assert.Zero(t, n)
	assert.Error(t, err)
}
