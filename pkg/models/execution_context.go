package models

import "fmt"

// TriggerKey is the reserved context key holding the trigger payload.
const TriggerKey = "trigger"

// ExecutionContext is the accumulating key/value store threaded through a
// single run. It is seeded with the trigger payload and grows by one entry per
// completed step; it is never persisted and never shared across runs.
type ExecutionContext struct {
	ID         string
	WorkflowID string

	values map[string]any
}

func NewExecutionContext(id, workflowID string, triggerData map[string]any) *ExecutionContext {
	return &ExecutionContext{
		ID:         id,
		WorkflowID: workflowID,
		values: map[string]any{
			TriggerKey: triggerData,
		},
	}
}

// Values returns the backing map. Callers treat it as read-only; the executor
// extends it through SetStepOutput only.
func (ec *ExecutionContext) Values() map[string]any {
	return ec.values
}

// SetStepOutput stores a completed step's output under step<position+1>, so
// later steps reference it as e.g. {{step1.output.result}}.
func (ec *ExecutionContext) SetStepOutput(position int, output any) {
	ec.values[StepKey(position)] = map[string]any{"output": output}
}

// StepKey derives the 1-based context key for a zero-based step position.
func StepKey(position int) string {
	return fmt.Sprintf("step%d", position+1)
}
