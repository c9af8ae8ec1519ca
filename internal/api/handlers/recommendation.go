package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/nutrikb/internal/api"
	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/service"
)

type TestRecommender interface {
	Recommend(context, answers string) *domain.TestRecommendation
}

type RecommendationHandler struct {
	rules TestRecommender
}

func NewRecommendationHandler(rules TestRecommender) *RecommendationHandler {
	return &RecommendationHandler{rules: rules}
}

type RecommendRequest struct {
	Context string `json:"context"`
	Answers string `json:"answers"`
}

type RecommendResponse struct {
	Approved  []string `json:"approved"`
	RuleBased []string `json:"rule_based"`
	YAML      string   `json:"yaml"`
}

// Recommend runs the rule engine. Empty context and answers are valid and
// yield the baseline panel.
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec := h.rules.Recommend(req.Context, req.Answers)
	out, err := service.RecommendationYAML(rec)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RecommendResponse{
		Approved:  rec.Approved,
		RuleBased: rec.RuleBased,
		YAML:      out,
	})
}
