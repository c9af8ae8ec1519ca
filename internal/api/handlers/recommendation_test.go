package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRuleEngine() *service.RuleEngine {
	return service.NewRuleEngine(&domain.Catalog{
		Approved: []string{"CBC", "Serum Ferritin", "Zinc", "Lead (Blood)"},
		Baseline: []string{"CBC"},
		Symptoms: map[string][]string{
			"pica": {"Serum Ferritin", "Lead (Blood)", "Ferritin"},
		},
		Match: domain.MatchSubstring,
	})
}

func TestRecommendationHandler_Recommend(t *testing.T) {
	handler := NewRecommendationHandler(testRuleEngine())

	req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", bytes.NewBufferString(`{"context":"","answers":"She has PICA at night"}`))
	w := httptest.NewRecorder()

	handler.Recommend(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data RecommendResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"CBC", "Lead (Blood)", "Serum Ferritin"}, resp.Data.RuleBased)
	assert.Equal(t, []string{"CBC", "Lead (Blood)", "Serum Ferritin", "Zinc"}, resp.Data.Approved)
	assert.Contains(t, resp.Data.YAML, "rule_based:")
}

func TestRecommendationHandler_Recommend_EmptyInputGivesBaseline(t *testing.T) {
	handler := NewRecommendationHandler(testRuleEngine())

	req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	handler.Recommend(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data RecommendResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"CBC"}, resp.Data.RuleBased)
}

func TestRecommendationHandler_Recommend_InvalidJSON(t *testing.T) {
	handler := NewRecommendationHandler(testRuleEngine())

	req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", bytes.NewBufferString(`nope`))
	w := httptest.NewRecorder()

	handler.Recommend(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
