// Package testutil provides test data builders shared across test suites.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/stepline/stepline/pkg/models"
)

// CreateTestWorkflow builds a manual, active workflow with no steps. Steps
// added through WithSteps get their workflow ID and positions assigned.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:          uuid.NewString(),
		UserID:      "user-1",
		Name:        "Test Workflow",
		TriggerKind: models.TriggerKindManual,
		IsActive:    true,
		Steps:       []*models.Step{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	for position, step := range workflow.Steps {
		step.WorkflowID = workflow.ID
		step.Position = position
	}

	return workflow
}

// WithTriggerKind sets the workflow trigger kind.
func WithTriggerKind(kind models.TriggerKind) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.TriggerKind = kind
	}
}

// WithInactive marks the workflow inactive.
func WithInactive() func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.IsActive = false
	}
}

// WithSteps attaches steps in order.
func WithSteps(steps ...*models.Step) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Steps = steps
	}
}

// CreateTestStep builds a transform step with a trivial expression.
func CreateTestStep(overrides ...func(*models.Step)) *models.Step {
	step := &models.Step{
		ID:     uuid.NewString(),
		Type:   models.StepTypeTransform,
		Name:   "Test Step",
		Config: map[string]any{"expression": `"ok"`},
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithStepType sets the step type tag.
func WithStepType(stepType string) func(*models.Step) {
	return func(s *models.Step) {
		s.Type = stepType
	}
}

// WithStepConfig sets the step config.
func WithStepConfig(config map[string]any) func(*models.Step) {
	return func(s *models.Step) {
		s.Config = config
	}
}

// TransformStep builds a transform step for the given expression.
func TransformStep(expression string) *models.Step {
	return CreateTestStep(WithStepConfig(map[string]any{"expression": expression}))
}

// ConditionStep builds a condition step.
func ConditionStep(expression string, skipCount int) *models.Step {
	return CreateTestStep(
		WithStepType(models.StepTypeCondition),
		WithStepConfig(map[string]any{"expression": expression, "skip_count": skipCount}),
	)
}
