package models

import "time"

// ExecutionStatus is the lifecycle state of an execution. The terminal states
// are completed and failed; a record never leaves a terminal state.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// StepExecutionStatus is the lifecycle state of one step attempt.
type StepExecutionStatus string

const (
	StepStatusRunning   StepExecutionStatus = "running"
	StepStatusCompleted StepExecutionStatus = "completed"
	StepStatusFailed    StepExecutionStatus = "failed"
	StepStatusSkipped   StepExecutionStatus = "skipped"
)

// Execution records one end-to-end run of a workflow. It is created once in
// running status and receives exactly one more write when the run ends.
type Execution struct {
	ID          string          `json:"id"          validate:"required"`
	WorkflowID  string          `json:"workflow_id" validate:"required"`
	Status      ExecutionStatus `json:"status"      validate:"required"`
	TriggerData map[string]any  `json:"trigger_data,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	DurationMS  *int64          `json:"duration_ms,omitempty"`
}

// StepExecution records one step attempt within an execution. Skipped steps
// are created directly in skipped status with nil timestamps.
type StepExecution struct {
	ID          string              `json:"id"           validate:"required"`
	ExecutionID string              `json:"execution_id" validate:"required"`
	StepID      string              `json:"step_id"      validate:"required"`
	Position    int                 `json:"position"`
	Status      StepExecutionStatus `json:"status"       validate:"required"`
	Input       map[string]any      `json:"input,omitempty"`
	Output      any                 `json:"output,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
	DurationMS  *int64              `json:"duration_ms,omitempty"`
}
