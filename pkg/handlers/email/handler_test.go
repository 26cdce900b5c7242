package email_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stepline/stepline/pkg/handlers/email"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailHandlerValidation(t *testing.T) {
	t.Parallel()

	handler := email.NewHandler(slog.Default())
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil)

	tests := []struct {
		name    string
		config  map[string]any
		wantErr string
	}{
		{
			name:    "missing api key",
			config:  map[string]any{"to": "a@example.com", "subject": "hi", "body": "text"},
			wantErr: "API key is required",
		},
		{
			name:    "missing recipient",
			config:  map[string]any{"api_key": "key", "subject": "hi", "body": "text"},
			wantErr: "recipient email is required",
		},
		{
			name:    "missing subject",
			config:  map[string]any{"api_key": "key", "to": "a@example.com", "body": "text"},
			wantErr: "email subject is required",
		},
		{
			name:    "missing body",
			config:  map[string]any{"api_key": "key", "to": "a@example.com", "subject": "hi"},
			wantErr: "email body is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := handler.Execute(context.Background(), tt.config, execCtx)
			require.False(t, result.Success)
			assert.Equal(t, tt.wantErr, result.Error)
		})
	}
}

func TestEmailHandlerSchemaRequiresCoreFields(t *testing.T) {
	t.Parallel()

	handler := email.NewHandler(slog.Default())

	schema := handler.Schema()
	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"api_key", "to", "subject", "body"}, required)
}
