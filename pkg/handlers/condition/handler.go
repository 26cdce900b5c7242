// Package condition provides the boolean condition step handler. When the
// expression is false, the executor skips the handler-reported number of
// subsequent steps.
package condition

import (
	"context"
	"log/slog"
	"time"

	"github.com/stepline/stepline/pkg/expression"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/protocol"
)

const defaultSkipCount = 1

type Handler struct {
	logger *slog.Logger
	engine *expression.Engine
}

func NewHandler(logger *slog.Logger, engine *expression.Engine) *Handler {
	return &Handler{
		logger: logger.With("module", "condition_handler"),
		engine: engine,
	}
}

func (h *Handler) ID() string {
	return models.StepTypeCondition
}

func (h *Handler) Name() string {
	return "Condition"
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, execCtx *models.ExecutionContext) protocol.Result {
	expr, _ := config["expression"].(string)
	if expr == "" {
		return protocol.Failure("condition expression is required")
	}

	skipCount := defaultSkipCount

	switch value := config["skip_count"].(type) {
	case float64:
		if value > 0 {
			skipCount = int(value)
		}
	case int:
		if value > 0 {
			skipCount = value
		}
	}

	started := time.Now()

	result, err := h.engine.EvaluateBool(expr, execCtx.Values())

	duration := time.Since(started).Milliseconds()

	if err != nil {
		h.logger.WarnContext(ctx, "Condition expression failed", "error", err)

		return protocol.Result{Success: false, Error: err.Error(), DurationMS: duration}
	}

	return protocol.Result{
		Success: true,
		Output: map[string]any{
			"result":     result,
			"expression": expr,
			"skip_count": skipCount,
		},
		DurationMS: duration,
	}
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Boolean expression evaluated against the execution context.",
				"examples": []string{
					"trigger.body.amount > 100",
					`step1.output.status == 200`,
				},
			},
			"skip_count": map[string]any{
				"type":        "integer",
				"description": "Number of subsequent steps to skip when the expression is false.",
				"default":     defaultSkipCount,
				"minimum":     1,
			},
		},
		"required": []string{"expression"},
	}
}
