package httpcall_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stepline/stepline/pkg/handlers/httpcall"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execContext() *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", nil)
}

func TestHTTPHandlerGetJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "stepline/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": "ok", "count": 3}`))
	}))
	defer server.Close()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{"url": server.URL}, execContext())
	require.True(t, result.Success, "error: %s", result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 200, output["status"])
	assert.Equal(t, "OK", output["status_text"])
	assert.Equal(t, true, output["ok"])

	body, ok := output["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", body["message"])
	assert.InDelta(t, 3.0, body["count"], 0)
}

func TestHTTPHandlerPostObjectBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		received, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]any

		require.NoError(t, json.Unmarshal(received, &payload))
		assert.Equal(t, "widget", payload["item"])

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{
		"url":    server.URL,
		"method": "post",
		"body":   map[string]any{"item": "widget"},
	}, execContext())
	require.True(t, result.Success, "error: %s", result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 201, output["status"])
}

func TestHTTPHandlerSendsConfiguredHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"Authorization": "Bearer token-1"},
	}, execContext())
	require.True(t, result.Success)
}

func TestHTTPHandlerNonSuccessStatusKeepsOutput(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "missing"}`))
	}))
	defer server.Close()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{"url": server.URL}, execContext())
	require.False(t, result.Success)
	assert.Equal(t, "HTTP 404: Not Found", result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 404, output["status"])
	assert.Equal(t, false, output["ok"])

	body, ok := output["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "missing", body["error"])
}

func TestHTTPHandlerTextResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kept": "as text"}`))
	}))
	defer server.Close()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{
		"url":           server.URL,
		"response_type": "text",
	}, execContext())
	require.True(t, result.Success)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, `{"kept": "as text"}`, output["body"])
}

func TestHTTPHandlerNonJSONContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain text"))
	}))
	defer server.Close()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{"url": server.URL}, execContext())
	require.True(t, result.Success)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "plain text", output["body"])
}

func TestHTTPHandlerMissingURL(t *testing.T) {
	t.Parallel()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{}, execContext())
	require.False(t, result.Success)
	assert.Equal(t, "URL is required", result.Error)
}

func TestHTTPHandlerConnectionError(t *testing.T) {
	t.Parallel()

	handler := httpcall.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{
		"url": "http://127.0.0.1:1",
	}, execContext())
	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
