// Package store defines the persistence boundary the execution engine writes
// through. The engine never assumes transactional atomicity across calls;
// each individual write is expected to eventually persist.
package store

import (
	"context"
	"errors"

	"github.com/stepline/stepline/pkg/models"
)

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrExecutionNotFound = errors.New("execution not found")
)

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// Store is the execution store contract. WorkflowByID returns the workflow
// with its steps ordered by position.
type Store interface {
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	CreateExecution(ctx context.Context, execution *models.Execution) error
	UpdateExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)

	CreateStepExecution(ctx context.Context, stepExecution *models.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *models.StepExecution) error
	StepExecutionsByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
