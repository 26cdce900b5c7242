package completion_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stepline/stepline/pkg/handlers/completion"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execContext() *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", nil)
}

func fakeCompletionServer(t *testing.T, response map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")

		err := json.NewEncoder(w).Encode(response)
		require.NoError(t, err)
	}))
}

func TestCompletionHandlerExecute(t *testing.T) {
	t.Parallel()

	server := fakeCompletionServer(t, map[string]any{
		"id":    "chatcmpl-123",
		"model": "gpt-4o",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": "All clear."},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     1000,
			"completion_tokens": 1000,
			"total_tokens":      2000,
		},
	})
	defer server.Close()

	handler := completion.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{
		"api_key":  "test-key",
		"prompt":   "Summarize the incident",
		"model":    "gpt-4o",
		"base_url": server.URL + "/v1",
	}, execContext())

	require.True(t, result.Success, "error: %s", result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "All clear.", output["content"])
	assert.Equal(t, "gpt-4o", output["model"])
	assert.Equal(t, "stop", output["finish_reason"])
	assert.Equal(t, "chatcmpl-123", output["response_id"])

	tokens, ok := output["tokens"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1000, tokens["input"])
	assert.Equal(t, 1000, tokens["output"])
	assert.Equal(t, 2000, tokens["total"])

	// gpt-4o prices at 0.005 in and 0.015 out per 1000 tokens.
	assert.InDelta(t, 0.02, output["cost"], 1e-9)
}

func TestCompletionHandlerUnknownModelUsesFallbackPricing(t *testing.T) {
	t.Parallel()

	server := fakeCompletionServer(t, map[string]any{
		"id":    "chatcmpl-456",
		"model": "experimental-model",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": "ok"},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     2000,
			"completion_tokens": 1000,
			"total_tokens":      3000,
		},
	})
	defer server.Close()

	handler := completion.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{
		"api_key":  "test-key",
		"prompt":   "hello",
		"model":    "experimental-model",
		"base_url": server.URL + "/v1",
	}, execContext())

	require.True(t, result.Success, "error: %s", result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)

	// Falls back to the gpt-3.5-turbo tier: 2 * 0.001 + 1 * 0.002.
	assert.InDelta(t, 0.004, output["cost"], 1e-9)
}

func TestCompletionHandlerEmptyChoices(t *testing.T) {
	t.Parallel()

	server := fakeCompletionServer(t, map[string]any{
		"id":      "chatcmpl-789",
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{},
		"usage":   map[string]any{},
	})
	defer server.Close()

	handler := completion.NewHandler(slog.Default())

	result := handler.Execute(context.Background(), map[string]any{
		"api_key":  "test-key",
		"prompt":   "hello",
		"base_url": server.URL + "/v1",
	}, execContext())

	require.False(t, result.Success)
	assert.Equal(t, "no response from completion provider", result.Error)
}

func TestCompletionHandlerValidation(t *testing.T) {
	t.Parallel()

	handler := completion.NewHandler(slog.Default())

	tests := []struct {
		name    string
		config  map[string]any
		wantErr string
	}{
		{
			name:    "missing api key",
			config:  map[string]any{"prompt": "hello"},
			wantErr: "API key is required",
		},
		{
			name:    "missing prompt",
			config:  map[string]any{"api_key": "key"},
			wantErr: "prompt is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := handler.Execute(context.Background(), tt.config, execContext())
			require.False(t, result.Success)
			assert.Equal(t, tt.wantErr, result.Error)
		})
	}
}
