package server

import (
	"net/http"

	"github.com/cloo-solutions/nutrikb/internal/api"
	"github.com/cloo-solutions/nutrikb/internal/api/handlers"
	"github.com/cloo-solutions/nutrikb/internal/api/middleware"
	"github.com/cloo-solutions/nutrikb/internal/extract"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	KnowledgeHandler      *handlers.KnowledgeHandler
	RecommendationHandler *handlers.RecommendationHandler
	ConsultationHandler   *handlers.ConsultationHandler
}

// Uploads carry up to extract.MaxFileSize plus multipart framing.
const maxBodyBytes int64 = extract.MaxFileSize + 1024*1024

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/documents", cfg.KnowledgeHandler.CreateDocument)
			r.Get("/documents", cfg.KnowledgeHandler.ListDocuments)
			r.Post("/uploads", cfg.KnowledgeHandler.Upload)
			r.Get("/chunks", cfg.KnowledgeHandler.ListChunks)
			r.Delete("/", cfg.KnowledgeHandler.Clear)
			r.Post("/index", cfg.KnowledgeHandler.Index)
			r.Post("/retrieve", cfg.KnowledgeHandler.Retrieve)
		})

		r.Post("/recommendations", cfg.RecommendationHandler.Recommend)

		r.Route("/consultations", func(r chi.Router) {
			r.Post("/", cfg.ConsultationHandler.Create)
			r.Get("/", cfg.ConsultationHandler.List)
			r.Get("/{id}", cfg.ConsultationHandler.Get)
			r.Post("/{id}/artifacts", cfg.ConsultationHandler.AddArtifact)
			r.Post("/{id}/questions", cfg.ConsultationHandler.GenerateQuestions)
			r.Put("/{id}/answers", cfg.ConsultationHandler.SaveAnswers)
			r.Post("/{id}/tests", cfg.ConsultationHandler.RecommendTests)
			r.Post("/{id}/plan", cfg.ConsultationHandler.GeneratePlan)
		})
	})

	return r
}
