// Package web provides the HTTP endpoints for triggering and inspecting runs.
package web

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stepline/stepline/pkg/engine"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/registry"
	"github.com/stepline/stepline/pkg/store"
)

type APIHandlers struct {
	logger   *slog.Logger
	store    store.Store
	executor *engine.Executor
	registry *registry.Registry
	validate *validator.Validate
}

func NewAPIHandlers(
	logger *slog.Logger,
	stepStore store.Store,
	executor *engine.Executor,
	reg *registry.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		store:    stepStore,
		executor: executor,
		registry: reg,
		validate: validate,
	}
}

type executeRequest struct {
	WorkflowID  string         `json:"workflow_id" validate:"required"`
	TriggerData map[string]any `json:"trigger_data"`
}

// ExecuteWorkflow triggers one manual run of a workflow and waits for it.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req executeRequest

	err := json.Unmarshal(c.Body(), &req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validate.Struct(&req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	_, err = h.store.WorkflowByID(c.Context(), req.WorkflowID)
	if err != nil {
		return handleStoreError(c, err)
	}

	triggerData := req.TriggerData
	if triggerData == nil {
		triggerData = map[string]any{
			"manual":    true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}

	return h.run(c, req.WorkflowID, triggerData)
}

// Webhook triggers a run of an active webhook workflow with the incoming
// request wrapped as the trigger payload. Missing, inactive, and non-webhook
// workflows all answer 404 so the hook URL leaks nothing.
func (h *APIHandlers) Webhook(c fiber.Ctx) error {
	workflowID := c.Params("workflowID")

	workflow, err := h.store.WorkflowByID(c.Context(), workflowID)
	if err != nil {
		return handleStoreError(c, err)
	}

	if workflow.TriggerKind != models.TriggerKindWebhook || !workflow.IsActive {
		return notFound(c, "workflow not found")
	}

	triggerData := map[string]any{
		"webhook":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"headers":   flattenHeaders(c.GetReqHeaders()),
		"body":      parseWebhookBody(c.Get(fiber.HeaderContentType), c.Body()),
		"url":       c.OriginalURL(),
		"method":    c.Method(),
	}

	return h.run(c, workflowID, triggerData)
}

func (h *APIHandlers) run(c fiber.Ctx, workflowID string, triggerData map[string]any) error {
	result, err := h.executor.Run(c.Context(), workflowID, triggerData)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Run failed to start", "workflow_id", workflowID, "error", err)

		return internalError(c, err)
	}

	if !result.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}

	return c.JSON(result)
}

// GetExecution returns one execution together with its step executions.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")

	execution, err := h.store.ExecutionByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	stepExecutions, err := h.store.StepExecutionsByExecution(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution":       execution,
		"step_executions": stepExecutions,
	})
}

// GetWorkflowExecutions lists a workflow's executions, most recent first.
func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")

	_, err := h.store.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	executions, err := h.store.ExecutionsByWorkflow(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

// GetWorkflow returns one workflow with its steps in position order.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.store.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(workflow)
}

// CreateWorkflow stores a workflow definition. Step configs are checked
// against the registered handler schemas before anything is written.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow

	err := json.Unmarshal(c.Body(), &workflow)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	for position, step := range workflow.Steps {
		if step.ID == "" {
			step.ID = uuid.NewString()
		}

		step.WorkflowID = workflow.ID
		step.Position = position
	}

	err = h.validate.Struct(&workflow)
	if err != nil {
		return badRequest(c, err.Error())
	}

	for _, step := range workflow.Steps {
		err = h.registry.ValidateConfig(step.Type, step.Config)
		if err != nil {
			return badRequest(c, "step "+step.ID+": "+err.Error())
		}
	}

	err = h.store.SaveWorkflow(c.Context(), &workflow)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

// GetStepTypes lists the registered step types with their config schemas.
func (h *APIHandlers) GetStepTypes(c fiber.Ctx) error {
	types := make([]fiber.Map, 0)

	for _, stepType := range h.registry.StepTypes() {
		handler, _ := h.registry.Lookup(stepType)
		types = append(types, fiber.Map{
			"type":   stepType,
			"name":   handler.Name(),
			"schema": handler.Schema(),
		})
	}

	return c.JSON(fiber.Map{"step_types": types})
}

// parseWebhookBody converts the raw request body to the shape steps see.
// JSON stays structured, form data flattens to a map, anything else is kept
// as text.
func parseWebhookBody(contentType string, body []byte) any {
	if len(body) == 0 {
		return map[string]any{}
	}

	switch {
	case strings.Contains(contentType, fiber.MIMEApplicationJSON):
		var parsed any

		err := json.Unmarshal(body, &parsed)
		if err == nil {
			return parsed
		}
	case strings.Contains(contentType, fiber.MIMEApplicationForm):
		values, err := url.ParseQuery(string(body))
		if err == nil {
			form := make(map[string]any, len(values))
			for key := range values {
				form[key] = values.Get(key)
			}

			return form
		}
	}

	return map[string]any{"text": string(body)}
}

func flattenHeaders(headers map[string][]string) map[string]any {
	flat := make(map[string]any, len(headers))
	for name, values := range headers {
		flat[strings.ToLower(name)] = strings.Join(values, ", ")
	}

	return flat
}
