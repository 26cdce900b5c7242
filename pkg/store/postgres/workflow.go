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

type workflowRepository struct {
	db *sql.DB
}

func (r *workflowRepository) getByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, user_id, name, COALESCE(description, ''), trigger_type, is_active, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	var workflow models.Workflow

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.UserID,
		&workflow.Name,
		&workflow.Description,
		&workflow.TriggerKind,
		&workflow.IsActive,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workflow %s: %w", id, store.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}

	steps, err := r.stepsByWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.Steps = steps

	return &workflow, nil
}

func (r *workflowRepository) stepsByWorkflow(ctx context.Context, workflowID string) ([]*models.Step, error) {
	query := `
		SELECT id, workflow_id, position, type, name, config
		FROM steps
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	steps := make([]*models.Step, 0)

	for rows.Next() {
		var (
			step       models.Step
			configJSON []byte
		)

		err := rows.Scan(&step.ID, &step.WorkflowID, &step.Position, &step.Type, &step.Name, &configJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		if len(configJSON) > 0 {
			err = json.Unmarshal(configJSON, &step.Config)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal step config: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate steps: %w", err)
	}

	return steps, nil
}

func (r *workflowRepository) save(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (id, user_id, name, description, trigger_type, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.UserID,
		workflow.Name,
		workflow.Description,
		workflow.TriggerKind,
		workflow.IsActive,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	for _, step := range workflow.Steps {
		err = r.saveStep(ctx, step)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *workflowRepository) saveStep(ctx context.Context, step *models.Step) error {
	configJSON, err := json.Marshal(step.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal step config: %w", err)
	}

	query := `
		INSERT INTO steps (id, workflow_id, position, type, name, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			config = EXCLUDED.config
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.WorkflowID,
		step.Position,
		step.Type,
		step.Name,
		configJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}

	return nil
}
