// Package file provides a file-system backed store implementation, useful for
// development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/store"
)

const (
	workflowsDir      = "workflows"
	executionsDir     = "executions"
	stepExecutionsDir = "step_executions"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Store keeps every record as one JSON file under the root directory.
// A single mutex serializes writes; concurrent runs only contend on it for
// the duration of a file write.
type Store struct {
	root string
	mu   sync.RWMutex
}

func NewStore(root string) *Store {
	cleanRoot := strings.TrimPrefix(root, "file://")

	return &Store{root: cleanRoot}
}

func (s *Store) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var workflow models.Workflow

	err := s.readJSON(filepath.Join(workflowsDir, id+".json"), &workflow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflow %s: %w", id, store.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	sort.Slice(workflow.Steps, func(i, j int) bool {
		return workflow.Steps[i].Position < workflow.Steps[j].Position
	})

	return &workflow, nil
}

func (s *Store) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeJSON(filepath.Join(workflowsDir, workflow.ID+".json"), workflow)
}

func (s *Store) CreateExecution(_ context.Context, execution *models.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeJSON(filepath.Join(executionsDir, execution.ID+".json"), execution)
}

func (s *Store) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	return s.CreateExecution(ctx, execution)
}

func (s *Store) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var execution models.Execution

	err := s.readJSON(filepath.Join(executionsDir, id+".json"), &execution)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("execution %s: %w", id, store.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	return &execution, nil
}

func (s *Store) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.root, executionsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Execution{}, nil
		}

		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*models.Execution, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var execution models.Execution

		err := s.readJSON(filepath.Join(executionsDir, entry.Name()), &execution)
		if err != nil {
			return nil, fmt.Errorf("failed to read execution file %s: %w", entry.Name(), err)
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, &execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func (s *Store) CreateStepExecution(_ context.Context, stepExecution *models.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(stepExecutionsDir, stepExecution.ExecutionID, stepExecution.ID+".json")

	return s.writeJSON(path, stepExecution)
}

func (s *Store) UpdateStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	return s.CreateStepExecution(ctx, stepExecution)
}

func (s *Store) StepExecutionsByExecution(_ context.Context, executionID string) ([]*models.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, stepExecutionsDir, executionID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.StepExecution{}, nil
		}

		return nil, fmt.Errorf("failed to list step executions: %w", err)
	}

	stepExecutions := make([]*models.StepExecution, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var stepExecution models.StepExecution

		err := s.readJSON(filepath.Join(stepExecutionsDir, executionID, entry.Name()), &stepExecution)
		if err != nil {
			return nil, fmt.Errorf("failed to read step execution file %s: %w", entry.Name(), err)
		}

		stepExecutions = append(stepExecutions, &stepExecution)
	}

	sort.Slice(stepExecutions, func(i, j int) bool {
		return stepExecutions[i].Position < stepExecutions[j].Position
	})

	return stepExecutions, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) readJSON(relPath string, target any) error {
	data, err := os.ReadFile(filepath.Join(s.root, relPath))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

func (s *Store) writeJSON(relPath string, value any) error {
	fullPath := filepath.Join(s.root, relPath)

	err := os.MkdirAll(filepath.Dir(fullPath), dirPerm)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", relPath, err)
	}

	err = os.WriteFile(fullPath, data, filePerm)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}

	return nil
}

var _ store.Store = (*Store)(nil)
