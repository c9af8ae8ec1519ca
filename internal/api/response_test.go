package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "value", result["key"])
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result SuccessResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "123", data["id"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "invalid input", result.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", domain.NewDomainError(domain.ErrCodeValidation, "invalid"), http.StatusBadRequest},
		{"not found error", domain.ErrConsultationNotFound, http.StatusNotFound},
		{"already exists error", domain.NewDomainError(domain.ErrCodeAlreadyExists, "exists"), http.StatusConflict},
		{"configuration error", domain.ErrEmbeddingNotConfigured, http.StatusServiceUnavailable},
		{"service error", domain.NewServiceError("embed", errors.New("timeout")), http.StatusBadGateway},
		{"context unavailable", domain.NewContextUnavailableError(errors.New("down")), http.StatusBadGateway},
		{"index incomplete", domain.NewIndexIncompleteError(3, 4, errors.New("down")), http.StatusBadGateway},
		{"index incomplete without key", domain.NewIndexIncompleteError(0, 4, domain.ErrEmbeddingNotConfigured), http.StatusServiceUnavailable},
		{"context unavailable without key", domain.NewContextUnavailableError(domain.ErrCompletionNotConfigured), http.StatusServiceUnavailable},
		{"data integrity", domain.ErrDimensionMismatch, http.StatusInternalServerError},
		{"wrapped domain error", fmt.Errorf("ingest: %w", domain.ErrEmptyDocument), http.StatusBadRequest},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DomainErrorToHTTP(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrConsultationNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "not found")
	assert.Equal(t, domain.ErrCodeNotFound, result.Code)
}

func TestHandleErrorWithData(t *testing.T) {
	w := httptest.NewRecorder()

	HandleErrorWithData(w, domain.NewIndexIncompleteError(64, 10, errors.New("rate limited")), map[string]int{"embedded": 64, "remaining": 10})

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var result struct {
		Error string         `json:"error"`
		Code  string         `json:"code"`
		Data  map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.ErrCodeIndexIncomplete, result.Code)
	assert.Equal(t, 10, result.Data["remaining"])
}
