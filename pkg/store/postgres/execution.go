package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/store"
)

type executionRepository struct {
	db *sql.DB
}

func (r *executionRepository) createExecution(ctx context.Context, execution *models.Execution) error {
	triggerJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, trigger_data, error, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		triggerJSON,
		execution.Error,
		execution.StartedAt,
		execution.FinishedAt,
		execution.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

func (r *executionRepository) updateExecution(ctx context.Context, execution *models.Execution) error {
	query := `
		UPDATE executions
		SET status = $2, error = NULLIF($3, ''), finished_at = $4, duration_ms = $5
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		execution.Error,
		execution.FinishedAt,
		execution.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	return nil
}

func (r *executionRepository) executionByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, trigger_data, COALESCE(error, ''), started_at, finished_at, duration_ms
		FROM executions
		WHERE id = $1
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, store.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *executionRepository) executionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, trigger_data, COALESCE(error, ''), started_at, finished_at, duration_ms
		FROM executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return executions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		triggerJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&triggerJSON,
		&execution.Error,
		&execution.StartedAt,
		&execution.FinishedAt,
		&execution.DurationMS,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerJSON) > 0 {
		err = json.Unmarshal(triggerJSON, &execution.TriggerData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	return &execution, nil
}

func (r *executionRepository) createStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	inputJSON, outputJSON, err := marshalStepPayloads(stepExecution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO step_executions (id, execution_id, step_id, position, status, input, output, error, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		stepExecution.ID,
		stepExecution.ExecutionID,
		stepExecution.StepID,
		stepExecution.Position,
		stepExecution.Status,
		inputJSON,
		outputJSON,
		stepExecution.Error,
		stepExecution.StartedAt,
		stepExecution.FinishedAt,
		stepExecution.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to create step execution: %w", err)
	}

	return nil
}

func (r *executionRepository) updateStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	inputJSON, outputJSON, err := marshalStepPayloads(stepExecution)
	if err != nil {
		return err
	}

	query := `
		UPDATE step_executions
		SET status = $2, input = $3, output = $4, error = NULLIF($5, ''), finished_at = $6, duration_ms = $7
		WHERE id = $1
	`

	_, err = r.db.ExecContext(ctx, query,
		stepExecution.ID,
		stepExecution.Status,
		inputJSON,
		outputJSON,
		stepExecution.Error,
		stepExecution.FinishedAt,
		stepExecution.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to update step execution: %w", err)
	}

	return nil
}

func (r *executionRepository) stepExecutionsByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	query := `
		SELECT id, execution_id, step_id, position, status, input, output, COALESCE(error, ''), started_at, finished_at, duration_ms
		FROM step_executions
		WHERE execution_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	stepExecutions := make([]*models.StepExecution, 0)

	for rows.Next() {
		var (
			stepExecution models.StepExecution
			inputJSON     []byte
			outputJSON    []byte
		)

		err := rows.Scan(
			&stepExecution.ID,
			&stepExecution.ExecutionID,
			&stepExecution.StepID,
			&stepExecution.Position,
			&stepExecution.Status,
			&inputJSON,
			&outputJSON,
			&stepExecution.Error,
			&stepExecution.StartedAt,
			&stepExecution.FinishedAt,
			&stepExecution.DurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}

		if len(inputJSON) > 0 {
			err = json.Unmarshal(inputJSON, &stepExecution.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal step input: %w", err)
			}
		}

		if len(outputJSON) > 0 {
			err = json.Unmarshal(outputJSON, &stepExecution.Output)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal step output: %w", err)
			}
		}

		stepExecutions = append(stepExecutions, &stepExecution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step executions: %w", err)
	}

	return stepExecutions, nil
}

func marshalStepPayloads(stepExecution *models.StepExecution) (inputJSON, outputJSON []byte, err error) {
	inputJSON, err = json.Marshal(stepExecution.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal step input: %w", err)
	}

	outputJSON, err = json.Marshal(stepExecution.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal step output: %w", err)
	}

	return inputJSON, outputJSON, nil
}
