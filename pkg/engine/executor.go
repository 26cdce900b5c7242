// Package engine runs workflows step by step and records the outcome.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stepline/stepline/pkg/eventbus"
	"github.com/stepline/stepline/pkg/events"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/otelhelper"
	"github.com/stepline/stepline/pkg/protocol"
	"github.com/stepline/stepline/pkg/registry"
	"github.com/stepline/stepline/pkg/resolver"
	"github.com/stepline/stepline/pkg/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunResult is what the caller gets back when a run reached a terminal state.
// A step failure is reported here, not as a Go error; Run returns a non-nil
// error only when the workflow could not be loaded or the run never started.
type RunResult struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"execution_id"`
	Error       string `json:"error,omitempty"`
}

// Executor runs workflows linearly in step position order. Event bus and
// tracer are optional; a nil value disables that concern.
type Executor struct {
	logger   *slog.Logger
	store    store.Store
	registry *registry.Registry
	bus      eventbus.EventBus
	tracer   trace.Tracer
}

func NewExecutor(logger *slog.Logger, stepStore store.Store, reg *registry.Registry) *Executor {
	return &Executor{
		logger:   logger.With("module", "executor"),
		store:    stepStore,
		registry: reg,
	}
}

// WithEventBus enables execution lifecycle event publishing.
func (e *Executor) WithEventBus(bus eventbus.EventBus) *Executor {
	e.bus = bus

	return e
}

// WithTracer enables per-run and per-step tracing spans.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer

	return e
}

// Run executes the workflow identified by workflowID against triggerData.
// The trigger payload is available to steps as {{trigger...}}; each completed
// step's output becomes {{step<N+1>.output...}}. Execution halts at the first
// failing step, and condition steps can skip the following steps.
func (e *Executor) Run(ctx context.Context, workflowID string, triggerData map[string]any) (*RunResult, error) {
	logger := e.logger.With("workflow_id", workflowID)

	workflow, err := e.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load workflow", "error", err)

		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	execution := &models.Execution{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		Status:      models.ExecutionStatusRunning,
		TriggerData: triggerData,
		StartedAt:   time.Now().UTC(),
	}

	logger = logger.With("execution_id", execution.ID)

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
			attribute.String(otelhelper.WorkflowIDKey, workflowID),
			attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
			attribute.String(otelhelper.TriggerKindKey, string(workflow.TriggerKind)),
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		)
		defer span.End()
	}

	err = e.store.CreateExecution(ctx, execution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create execution record", "error", err)

		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, execution),
		TriggerData: triggerData,
	})

	logger.InfoContext(ctx, "Execution started", "steps", len(workflow.Steps))

	execCtx := models.NewExecutionContext(execution.ID, workflowID, triggerData)
	skipRemaining := 0

	for _, step := range workflow.Steps {
		if skipRemaining > 0 {
			skipRemaining--

			e.recordSkipped(ctx, logger, execution, step)

			continue
		}

		result, stepErr := e.runStep(ctx, logger, execution, execCtx, step)
		if stepErr != nil {
			failure := fmt.Sprintf("Failed at step %d: %s", step.Position+1, stepErr.Error())

			e.finishExecution(ctx, logger, execution, models.ExecutionStatusFailed, failure)
			e.publish(ctx, execution.ID, events.ExecutionFailed{
				BaseEvent: e.baseEvent(events.ExecutionFailedEvent, execution),
				Error:     failure,
				Duration:  time.Since(execution.StartedAt),
			})

			logger.WarnContext(ctx, "Execution failed", "step_position", step.Position, "error", stepErr)

			return &RunResult{Success: false, ExecutionID: execution.ID, Error: failure}, nil
		}

		execCtx.SetStepOutput(step.Position, result.Output)

		if step.Type == models.StepTypeCondition {
			skipRemaining = conditionSkips(result.Output)
		}
	}

	e.finishExecution(ctx, logger, execution, models.ExecutionStatusCompleted, "")
	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent: e.baseEvent(events.ExecutionCompletedEvent, execution),
		StepCount: len(workflow.Steps),
		Duration:  time.Since(execution.StartedAt),
	})

	logger.InfoContext(ctx, "Execution completed")

	return &RunResult{Success: true, ExecutionID: execution.ID}, nil
}

// runStep resolves the step config, dispatches it to its handler, and records
// the step execution. A non-nil error means the step failed and the run stops.
func (e *Executor) runStep(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	step *models.Step,
) (protocol.Result, error) {
	logger = logger.With("step_id", step.ID, "step_type", step.Type, "step_position", step.Position)

	var span trace.Span

	if e.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.StepTypeKey, step.Type),
			attribute.String(otelhelper.StepNameKey, step.Name),
			attribute.Int(otelhelper.PositionKey, step.Position),
		)
		defer span.End()
	}

	resolvedConfig := resolver.ResolveConfig(step.Config, execCtx.Values())

	started := time.Now().UTC()
	stepExecution := &models.StepExecution{
		ID:          uuid.NewString(),
		ExecutionID: execution.ID,
		StepID:      step.ID,
		Position:    step.Position,
		Status:      models.StepStatusRunning,
		Input:       resolvedConfig,
		StartedAt:   &started,
	}

	err := e.store.CreateStepExecution(ctx, stepExecution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create step execution record", "error", err)
	}

	e.publish(ctx, execution.ID, events.StepStarted{
		BaseEvent: e.baseEvent(events.StepStartedEvent, execution),
		StepID:    step.ID,
		StepType:  step.Type,
		Position:  step.Position,
	})

	logger.InfoContext(ctx, "Executing step")

	result := e.dispatch(ctx, resolvedConfig, execCtx, step)

	finished := time.Now().UTC()
	durationMS := finished.Sub(started).Milliseconds()
	stepExecution.FinishedAt = &finished
	stepExecution.DurationMS = &durationMS

	if !result.Success {
		stepExecution.Status = models.StepStatusFailed
		stepExecution.Output = result.Output
		stepExecution.Error = result.Error

		err = e.store.UpdateStepExecution(ctx, stepExecution)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to update step execution record", "error", err)
		}

		e.publish(ctx, execution.ID, events.StepFailed{
			BaseEvent: e.baseEvent(events.StepFailedEvent, execution),
			StepID:    step.ID,
			StepType:  step.Type,
			Position:  step.Position,
			Error:     result.Error,
		})

		stepErr := fmt.Errorf("%s", result.Error)
		if span != nil {
			otelhelper.SetError(span, stepErr, attribute.String(otelhelper.StepIDKey, step.ID))
		}

		return result, stepErr
	}

	stepExecution.Status = models.StepStatusCompleted
	stepExecution.Output = result.Output

	err = e.store.UpdateStepExecution(ctx, stepExecution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update step execution record", "error", err)
	}

	e.publish(ctx, execution.ID, events.StepCompleted{
		BaseEvent:  e.baseEvent(events.StepCompletedEvent, execution),
		StepID:     step.ID,
		StepType:   step.Type,
		Position:   step.Position,
		Output:     result.Output,
		DurationMS: durationMS,
	})

	logger.InfoContext(ctx, "Step completed", "duration_ms", durationMS)

	return result, nil
}

func (e *Executor) dispatch(
	ctx context.Context,
	config map[string]any,
	execCtx *models.ExecutionContext,
	step *models.Step,
) protocol.Result {
	handler, ok := e.registry.Lookup(step.Type)
	if !ok {
		return protocol.Failure(fmt.Sprintf("unknown step type %q", step.Type))
	}

	return handler.Execute(ctx, config, execCtx)
}

// recordSkipped writes the skipped step execution. Skipped steps never run,
// so timestamps and payloads stay empty.
func (e *Executor) recordSkipped(ctx context.Context, logger *slog.Logger, execution *models.Execution, step *models.Step) {
	stepExecution := &models.StepExecution{
		ID:          uuid.NewString(),
		ExecutionID: execution.ID,
		StepID:      step.ID,
		Position:    step.Position,
		Status:      models.StepStatusSkipped,
	}

	err := e.store.CreateStepExecution(ctx, stepExecution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record skipped step", "step_id", step.ID, "error", err)
	}

	e.publish(ctx, execution.ID, events.StepSkipped{
		BaseEvent: e.baseEvent(events.StepSkippedEvent, execution),
		StepID:    step.ID,
		StepType:  step.Type,
		Position:  step.Position,
	})

	logger.InfoContext(ctx, "Step skipped", "step_id", step.ID, "step_position", step.Position)
}

func (e *Executor) finishExecution(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	status models.ExecutionStatus,
	failure string,
) {
	finished := time.Now().UTC()
	durationMS := finished.Sub(execution.StartedAt).Milliseconds()

	execution.Status = status
	execution.Error = failure
	execution.FinishedAt = &finished
	execution.DurationMS = &durationMS

	err := e.store.UpdateExecution(ctx, execution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update execution record", "error", err)
	}
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, key, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Executor) baseEvent(eventType events.EventType, execution *models.Execution) events.BaseEvent {
	return events.BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
	}
}

// conditionSkips reads the skip count out of a condition step's output. A
// truthy condition skips nothing.
func conditionSkips(output any) int {
	outputMap, ok := output.(map[string]any)
	if !ok {
		return 0
	}

	result, ok := outputMap["result"].(bool)
	if !ok || result {
		return 0
	}

	switch count := outputMap["skip_count"].(type) {
	case int:
		return count
	case float64:
		return int(count)
	default:
		return 0
	}
}
