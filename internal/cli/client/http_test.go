package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigPath(t *testing.T, path string) {
	t.Helper()
	old := getConfigPathFunc
	getConfigPathFunc = func() (string, error) { return path, nil }
	t.Cleanup(func() { getConfigPathFunc = old })
}

func TestNewAPIClientWithCmd_FlagWins(t *testing.T) {
	t.Setenv(envAPIURL, "http://env:8080")

	cmd := &cobra.Command{}
	cmd.Flags().String("api-url", "", "")
	require.NoError(t, cmd.Flags().Set("api-url", "http://flag:8080"))

	api, err := NewAPIClientWithCmd(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8080", api.baseURL)
}

func TestNewAPIClientWithCmd_EnvOverridesGlobalConfig(t *testing.T) {
	t.Setenv(envAPIURL, "http://env:8080")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_url":"http://global:8080"}`), 0600))
	withConfigPath(t, path)

	api, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8080", api.baseURL)
}

func TestNewAPIClientWithCmd_GlobalConfig(t *testing.T) {
	t.Setenv(envAPIURL, "")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_url":"http://global:8080"}`), 0600))
	withConfigPath(t, path)

	api, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://global:8080", api.baseURL)
}

func TestNewAPIClientWithCmd_Default(t *testing.T) {
	t.Setenv(envAPIURL, "")
	withConfigPath(t, filepath.Join(t.TempDir(), "missing.json"))

	api, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, api.baseURL)
}

func TestAPIClient_PostSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/knowledge/retrieve", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "iron", body["query"])

		_, _ = w.Write([]byte(`{"data":{"context":"Ferritin"}}`))
	}))
	defer srv.Close()

	resp, err := NewAPIClientWithConfig(srv.URL).Post("/v1/knowledge/retrieve", map[string]string{"query": "iron"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"context":"Ferritin"}`, string(resp.Data))
}

func TestAPIClient_ErrorCarriesCodeAndData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"index incomplete","code":"INDEX_INCOMPLETE","data":{"embedded":2}}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL).Post("/v1/knowledge/index", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "INDEX_INCOMPLETE", apiErr.Code)
	assert.JSONEq(t, `{"embedded":2}`, string(apiErr.Data))
	assert.Contains(t, apiErr.Error(), "502 INDEX_INCOMPLETE")
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL).Get("/health")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestAPIClient_UploadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "iron.txt")
	b := filepath.Join(dir, "zinc.txt")
	require.NoError(t, os.WriteFile(a, []byte("Ferritin"), 0600))
	require.NoError(t, os.WriteFile(b, []byte("Zinc"), 0600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "iron.txt", files[0].Filename)

		f, err := files[1].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "Zinc", string(data))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL).UploadFiles("/v1/knowledge/uploads", "files", []string{a, b})
	require.NoError(t, err)
}

func TestAPIClient_UploadFiles_MissingFile(t *testing.T) {
	_, err := NewAPIClientWithConfig("http://unused").UploadFiles("/x", "files", []string{filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}
