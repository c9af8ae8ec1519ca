package domain

import (
	"fmt"
	"time"
)

// Document is a reference document ingested into the knowledge bank.
type Document struct {
	ID        string
	Title     string
	Content   string // raw content; may be empty once chunked
	CreatedAt time.Time
}

// Chunk is a bounded window of a document's text, the unit of retrieval.
// Embedding is nil until the chunk has been indexed.
type Chunk struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkKey identifies a chunk by its composite key.
type ChunkKey struct {
	DocumentID string
	ChunkIndex int
}

// Key returns the chunk's composite key.
func (c Chunk) Key() ChunkKey {
	return ChunkKey{DocumentID: c.DocumentID, ChunkIndex: c.ChunkIndex}
}

// HasEmbedding reports whether the chunk has been indexed.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// String formats the key as "<document>#<index>".
func (k ChunkKey) String() string {
	return fmt.Sprintf("%s#%d", k.DocumentID, k.ChunkIndex)
}

// NewDocument creates a new Document instance
func NewDocument(id, title, content string, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		Title:     title,
		Content:   content,
		CreatedAt: createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	return nil
}

// ValidateChunks checks that chunks belong to one document and that their
// indices are contiguous starting at zero.
func ValidateChunks(documentID string, chunks []Chunk) error {
	for i, c := range chunks {
		if c.DocumentID != documentID {
			return NewDataIntegrityError(fmt.Sprintf("chunk %s does not belong to document %s", c.Key(), documentID))
		}
		if c.ChunkIndex != i {
			return NewDataIntegrityError(fmt.Sprintf("chunk index %d is not contiguous (expected %d)", c.ChunkIndex, i))
		}
	}
	return nil
}
