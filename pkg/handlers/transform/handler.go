// Package transform provides the expression-based data transform step handler.
package transform

import (
	"context"
	"log/slog"
	"time"

	"github.com/stepline/stepline/pkg/expression"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/protocol"
)

type Handler struct {
	logger *slog.Logger
	engine *expression.Engine
}

func NewHandler(logger *slog.Logger, engine *expression.Engine) *Handler {
	return &Handler{
		logger: logger.With("module", "transform_handler"),
		engine: engine,
	}
}

func (h *Handler) ID() string {
	return models.StepTypeTransform
}

func (h *Handler) Name() string {
	return "Transform"
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, execCtx *models.ExecutionContext) protocol.Result {
	expr, _ := config["expression"].(string)
	if expr == "" {
		return protocol.Failure("expression is required")
	}

	started := time.Now()

	output, err := h.engine.Evaluate(expr, execCtx.Values())

	duration := time.Since(started).Milliseconds()

	if err != nil {
		h.logger.WarnContext(ctx, "Transform expression failed", "error", err)

		return protocol.Result{Success: false, Error: err.Error(), DurationMS: duration}
	}

	return protocol.Result{Success: true, Output: output, DurationMS: duration}
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Value-producing expression evaluated against the execution context.",
				"examples": []string{
					"step1.output.result * 2",
					`{"name": trigger.body.name, "total": len(step1.output.items)}`,
					`jsonParse(step2.output.body)`,
				},
			},
		},
		"required": []string{"expression"},
	}
}
