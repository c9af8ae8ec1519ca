package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/api"
	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/extract"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/go-chi/chi/v5"
)

type ConsultationService interface {
	Create(ctx context.Context, input service.CreateConsultationInput) (*domain.Consultation, error)
	Get(ctx context.Context, id string) (*service.ConsultationDetails, error)
	List(ctx context.Context, input service.ListConsultationsInput) (*service.ListConsultationsOutput, error)
	AddArtifact(ctx context.Context, input service.AddArtifactInput) (*domain.Artifact, error)
	AddArtifactFile(ctx context.Context, consultationID string, kind domain.ArtifactKind, filename string, r io.Reader) (*domain.Artifact, error)
	GenerateQuestions(ctx context.Context, id string) (*domain.Questions, error)
	SaveAnswers(ctx context.Context, id string, answers map[string]string) error
	RecommendTests(ctx context.Context, id string) (*domain.TestsRecord, error)
	GeneratePlan(ctx context.Context, id string) (*domain.PlanRecord, error)
}

type ConsultationHandler struct {
	svc ConsultationService
}

func NewConsultationHandler(svc ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{svc: svc}
}

type CreateConsultationRequest struct {
	ChildName   string `json:"child_name"`
	DateOfBirth string `json:"date_of_birth"`
	Consultant  string `json:"consultant"`
}

type AddArtifactRequest struct {
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type SaveAnswersRequest struct {
	Answers map[string]string `json:"answers"`
}

type ConsultationResponse struct {
	ID          string `json:"id"`
	ChildName   string `json:"child_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Consultant  string `json:"consultant,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type ArtifactResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Filename  string `json:"filename"`
	Chars     int    `json:"chars"`
	CreatedAt string `json:"created_at"`
}

type ConsultationDetailsResponse struct {
	ConsultationResponse
	Artifacts []ArtifactResponse  `json:"artifacts"`
	Questions []string            `json:"questions,omitempty"`
	Answers   map[string]string   `json:"answers,omitempty"`
	Tests     *domain.TestsRecord `json:"tests,omitempty"`
	Plan      *domain.PlanRecord  `json:"plan,omitempty"`
}

func consultationToResponse(c *domain.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:          c.ID,
		ChildName:   c.ChildName,
		DateOfBirth: c.DateOfBirth,
		Consultant:  c.Consultant,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func artifactToResponse(a *domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		ID:        a.ID,
		Kind:      string(a.Kind),
		Filename:  a.Filename,
		Chars:     len([]rune(a.Content)),
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ConsultationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ChildName) == "" {
		api.Error(w, http.StatusBadRequest, "child_name is required")
		return
	}

	c, err := h.svc.Create(r.Context(), service.CreateConsultationInput{
		ChildName:   req.ChildName,
		DateOfBirth: req.DateOfBirth,
		Consultant:  req.Consultant,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, consultationToResponse(c))
}

func (h *ConsultationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	out, err := h.svc.List(r.Context(), service.ListConsultationsInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]ConsultationResponse, 0, len(out.Items))
	for _, c := range out.Items {
		items = append(items, consultationToResponse(c))
	}

	api.Success(w, http.StatusOK, map[string]interface{}{
		"items":    items,
		"cursor":   out.Cursor,
		"has_more": out.HasMore,
	})
}

func (h *ConsultationHandler) Get(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ConsultationDetailsResponse{
		ConsultationResponse: consultationToResponse(details.Consultation),
		Artifacts:            make([]ArtifactResponse, 0, len(details.Artifacts)),
		Questions:            details.Questions,
		Answers:              details.Answers,
		Tests:                details.Tests,
		Plan:                 details.Plan,
	}
	for _, a := range details.Artifacts {
		resp.Artifacts = append(resp.Artifacts, artifactToResponse(a))
	}

	api.Success(w, http.StatusOK, resp)
}

// AddArtifact accepts either a multipart upload ("file" and "kind" fields)
// or a JSON body with already extracted text.
func (h *ConsultationHandler) AddArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		artifact *domain.Artifact
		err      error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(extract.MaxFileSize); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		f, fh, ferr := r.FormFile("file")
		if ferr != nil {
			api.Error(w, http.StatusBadRequest, "file is required")
			return
		}
		defer f.Close()
		kind := domain.ArtifactKind(r.FormValue("kind"))
		artifact, err = h.svc.AddArtifactFile(r.Context(), id, kind, fh.Filename, f)
	} else {
		var req AddArtifactRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		artifact, err = h.svc.AddArtifact(r.Context(), service.AddArtifactInput{
			ConsultationID: id,
			Kind:           domain.ArtifactKind(req.Kind),
			Filename:       req.Filename,
			Content:        req.Content,
		})
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, artifactToResponse(artifact))
}

func (h *ConsultationHandler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.svc.GenerateQuestions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, questions)
}

func (h *ConsultationHandler) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	var req SaveAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SaveAnswers(r.Context(), chi.URLParam(r, "id"), req.Answers); err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]bool{"saved": true})
}

func (h *ConsultationHandler) RecommendTests(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.RecommendTests(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, rec)
}

func (h *ConsultationHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.GeneratePlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, plan)
}
