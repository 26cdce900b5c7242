package condition_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stepline/stepline/pkg/expression"
	"github.com/stepline/stepline/pkg/handlers/condition"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler() *condition.Handler {
	return condition.NewHandler(slog.Default(), expression.NewEngine())
}

func TestConditionHandlerExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      map[string]any
		triggerData map[string]any
		wantResult  bool
		wantSkips   int
	}{
		{
			name:        "true condition",
			config:      map[string]any{"expression": "trigger.amount > 10"},
			triggerData: map[string]any{"amount": 50},
			wantResult:  true,
			wantSkips:   1,
		},
		{
			name:        "false condition with default skip count",
			config:      map[string]any{"expression": "trigger.amount > 10"},
			triggerData: map[string]any{"amount": 5},
			wantResult:  false,
			wantSkips:   1,
		},
		{
			name:        "explicit skip count",
			config:      map[string]any{"expression": "false", "skip_count": float64(3)},
			triggerData: nil,
			wantResult:  false,
			wantSkips:   3,
		},
		{
			name:        "truthy non-boolean value",
			config:      map[string]any{"expression": `"non-empty"`},
			triggerData: nil,
			wantResult:  true,
			wantSkips:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := newHandler()
			execCtx := models.NewExecutionContext("exec-1", "wf-1", tt.triggerData)

			result := handler.Execute(context.Background(), tt.config, execCtx)
			require.True(t, result.Success, "error: %s", result.Error)

			output, ok := result.Output.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantResult, output["result"])
			assert.Equal(t, tt.wantSkips, output["skip_count"])
		})
	}
}

func TestConditionHandlerMissingExpression(t *testing.T) {
	t.Parallel()

	handler := newHandler()

	result := handler.Execute(context.Background(), map[string]any{},
		models.NewExecutionContext("exec-1", "wf-1", nil))

	require.False(t, result.Success)
	assert.Equal(t, "condition expression is required", result.Error)
}

func TestConditionHandlerInvalidExpression(t *testing.T) {
	t.Parallel()

	handler := newHandler()

	result := handler.Execute(context.Background(), map[string]any{
		"expression": "trigger ..",
	}, models.NewExecutionContext("exec-1", "wf-1", nil))

	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
