// Package postgres provides the PostgreSQL store implementation.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/store"
	"github.com/stepline/stepline/pkg/store/sqlbase"
)

type Store struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *workflowRepository
	executionRepo *executionRepository
}

func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations(),
		"INSERT INTO schema_migrations (version) VALUES ($1)")

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:            database,
		logger:        logger,
		workflowRepo:  &workflowRepository{db: database},
		executionRepo: &executionRepository{db: database},
	}, nil
}

func (s *Store) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.workflowRepo.getByID(ctx, id)
}

func (s *Store) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return s.workflowRepo.save(ctx, workflow)
}

func (s *Store) CreateExecution(ctx context.Context, execution *models.Execution) error {
	return s.executionRepo.createExecution(ctx, execution)
}

func (s *Store) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	return s.executionRepo.updateExecution(ctx, execution)
}

func (s *Store) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return s.executionRepo.executionByID(ctx, id)
}

func (s *Store) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return s.executionRepo.executionsByWorkflow(ctx, workflowID)
}

func (s *Store) CreateStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	return s.executionRepo.createStepExecution(ctx, stepExecution)
}

func (s *Store) UpdateStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	return s.executionRepo.updateStepExecution(ctx, stepExecution)
}

func (s *Store) StepExecutionsByExecution(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	return s.executionRepo.stepExecutionsByExecution(ctx, executionID)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

var _ store.Store = (*Store)(nil)
