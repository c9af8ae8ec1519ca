package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/api"
	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/extract"
	"github.com/cloo-solutions/nutrikb/internal/service"
)

type KnowledgeService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	IngestFile(ctx context.Context, filename string, r io.Reader) (*service.IngestResult, error)
	ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	ListChunks(ctx context.Context, withEmbeddings bool) ([]domain.Chunk, error)
	Clear(ctx context.Context) (int, error)
}

type IndexBuilder interface {
	BuildIndex(ctx context.Context, batchSize int) (*service.IndexResult, error)
}

type ContextSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]service.ScoredChunk, error)
	Snippet(text string) string
}

type KnowledgeHandler struct {
	svc       KnowledgeService
	indexer   IndexBuilder
	retriever ContextSearcher
}

func NewKnowledgeHandler(svc KnowledgeService, indexer IndexBuilder, retriever ContextSearcher) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, indexer: indexer, retriever: retriever}
}

type IngestDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DocumentResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Chunks    int    `json:"chunks,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ChunkResponse struct {
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Embedded   bool      `json:"embedded"`
}

type IndexRequest struct {
	BatchSize int `json:"batch_size"`
}

type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type RetrieveHit struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Snippet    string  `json:"snippet"`
}

type RetrieveResponse struct {
	Context string        `json:"context"`
	Hits    []RetrieveHit `json:"hits"`
}

func documentToResponse(d *domain.Document, chunks int) *DocumentResponse {
	return &DocumentResponse{
		ID:        d.ID,
		Title:     d.Title,
		Chunks:    chunks,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateDocument ingests a JSON document body.
func (h *KnowledgeHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}

	result, err := h.svc.Ingest(r.Context(), service.IngestInput{Title: req.Title, Content: req.Content})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(result.Document, result.Chunks))
}

// Upload ingests every file of a multipart form under the "files" field.
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(extract.MaxFileSize); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		api.Error(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	docs := make([]*DocumentResponse, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			api.Error(w, http.StatusBadRequest, "failed to open "+fh.Filename)
			return
		}
		result, err := h.svc.IngestFile(r.Context(), fh.Filename, f)
		f.Close()
		if err != nil {
			api.HandleError(w, err)
			return
		}
		docs = append(docs, documentToResponse(result.Document, result.Chunks))
	}

	api.Success(w, http.StatusCreated, docs)
}

func (h *KnowledgeHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	out, err := h.svc.ListDocuments(r.Context(), service.ListDocumentsInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, 0, len(out.Items))
	for _, d := range out.Items {
		items = append(items, documentToResponse(d, 0))
	}

	api.Success(w, http.StatusOK, map[string]interface{}{
		"items":    items,
		"cursor":   out.Cursor,
		"has_more": out.HasMore,
	})
}

// ListChunks returns every chunk; ?embeddings=true includes the vectors.
func (h *KnowledgeHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	withEmbeddings, _ := strconv.ParseBool(r.URL.Query().Get("embeddings"))

	chunks, err := h.svc.ListChunks(r.Context(), withEmbeddings)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]ChunkResponse, 0, len(chunks))
	for _, c := range chunks {
		resp = append(resp, ChunkResponse{
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Embedding:  c.Embedding,
			Embedded:   c.HasEmbedding(),
		})
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *KnowledgeHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Clear(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]int{"documents_removed": n})
}

// Index embeds pending chunks. The counts are returned on failure too.
func (h *KnowledgeHandler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.BatchSize < 0 {
		api.Error(w, http.StatusBadRequest, "batch_size must not be negative")
		return
	}

	result, err := h.indexer.BuildIndex(r.Context(), req.BatchSize)
	if err != nil {
		api.HandleErrorWithData(w, err, result)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *KnowledgeHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 {
		api.Error(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}

	hits, err := h.retriever.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := RetrieveResponse{Hits: make([]RetrieveHit, 0, len(hits))}
	snippets := make([]string, 0, len(hits))
	for _, hit := range hits {
		snippet := h.retriever.Snippet(hit.Chunk.Text)
		snippets = append(snippets, snippet)
		resp.Hits = append(resp.Hits, RetrieveHit{
			DocumentID: hit.Chunk.DocumentID,
			ChunkIndex: hit.Chunk.ChunkIndex,
			Score:      hit.Score,
			Snippet:    snippet,
		})
	}
	resp.Context = strings.Join(snippets, "\n\n")

	api.Success(w, http.StatusOK, resp)
}
