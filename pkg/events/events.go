// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Topic is the channel all execution lifecycle events are published to.
const Topic = "stepline.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
	StepSkippedEvent   EventType = "step.skipped"
	StepFailedEvent    EventType = "step.failed"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
}

type ExecutionStarted struct {
	BaseEvent

	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	StepCount int           `json:"step_count"`
	Duration  time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type StepStarted struct {
	BaseEvent

	StepID   string `json:"step_id"`
	StepType string `json:"step_type"`
	Position int    `json:"position"`
}

func (e StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepCompleted struct {
	BaseEvent

	StepID     string `json:"step_id"`
	StepType   string `json:"step_type"`
	Position   int    `json:"position"`
	Output     any    `json:"output,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepSkipped struct {
	BaseEvent

	StepID   string `json:"step_id"`
	StepType string `json:"step_type"`
	Position int    `json:"position"`
}

func (e StepSkipped) GetType() EventType {
	return StepSkippedEvent
}

type StepFailed struct {
	BaseEvent

	StepID   string `json:"step_id"`
	StepType string `json:"step_type"`
	Position int    `json:"position"`
	Error    string `json:"error"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}
