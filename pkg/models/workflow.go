// Package models defines the core domain models for linear workflow execution.
package models

import "time"

// TriggerKind tells how a workflow run gets started.
type TriggerKind string

const (
	TriggerKindManual  TriggerKind = "manual"
	TriggerKindWebhook TriggerKind = "webhook"
)

// Step type tags for the built-in handlers.
const (
	StepTypeCompletion = "completion"
	StepTypeHTTP       = "http"
	StepTypeTransform  = "transform"
	StepTypeCondition  = "condition"
	StepTypeEmail      = "email"
)

// Workflow is a named, ordered sequence of steps owned by a user.
// It is immutable during a run; edits happen only through the external editor.
type Workflow struct {
	ID          string      `json:"id"           validate:"required"`
	UserID      string      `json:"user_id"      validate:"required"`
	Name        string      `json:"name"         validate:"required,min=3"`
	Description string      `json:"description,omitempty"`
	TriggerKind TriggerKind `json:"trigger_type" validate:"required,oneof=manual webhook"`
	IsActive    bool        `json:"is_active"`
	Steps       []*Step     `json:"steps"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Step is one configured operation within a workflow. Position is a dense,
// zero-based index; execution order is position order.
type Step struct {
	ID         string         `json:"id"          validate:"required"`
	WorkflowID string         `json:"workflow_id" validate:"required"`
	Position   int            `json:"position"    validate:"min=0"`
	Type       string         `json:"type"        validate:"required"`
	Name       string         `json:"name"        validate:"required"`
	Config     map[string]any `json:"config"`
}
