package eventbus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stepline/stepline/pkg/channels/gochannel"
	"github.com/stepline/stepline/pkg/engine"
	"github.com/stepline/stepline/pkg/eventbus"
	"github.com/stepline/stepline/pkg/events"
	"github.com/stepline/stepline/pkg/registry"
	"github.com/stepline/stepline/pkg/store/file"
	"github.com/stepline/stepline/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lifecycleEventTypes = []events.EventType{
	events.ExecutionStartedEvent,
	events.ExecutionCompletedEvent,
	events.ExecutionFailedEvent,
	events.StepStartedEvent,
	events.StepCompletedEvent,
	events.StepSkippedEvent,
	events.StepFailedEvent,
}

// newTestBus subscribes a single handler for every lifecycle event type and
// funnels the decoded events into one channel, preserving delivery order.
func newTestBus(t *testing.T) (eventbus.EventBus, <-chan any) {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	received := make(chan any, 32)
	for _, eventType := range lifecycleEventTypes {
		require.NoError(t, bus.Handle(eventType, func(_ context.Context, event any) error {
			received <- event

			return nil
		}))
	}

	require.NoError(t, bus.Subscribe(context.Background()))

	return bus, received
}

func newBusExecutor(t *testing.T, bus eventbus.EventBus) (*engine.Executor, *file.Store) {
	t.Helper()

	logger := slog.Default()
	fileStore := file.NewStore(t.TempDir())
	t.Cleanup(func() {
		_ = fileStore.Close(context.Background())
	})

	executor := engine.NewExecutor(logger, fileStore, registry.NewDefaultRegistry(logger))

	return executor.WithEventBus(bus), fileStore
}

func collectEvents(t *testing.T, received <-chan any, count int) []any {
	t.Helper()

	collected := make([]any, 0, count)
	for len(collected) < count {
		select {
		case event := <-received:
			collected = append(collected, event)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for events: got %d of %d", len(collected), count)
		}
	}

	return collected
}

func TestWatermillEventBusDeliversExecutionLifecycle(t *testing.T) {
	t.Parallel()

	bus, received := newTestBus(t)
	executor, fileStore := newBusExecutor(t, bus)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(
		testutil.TransformStep(`1 + 1`),
		testutil.ConditionStep(`1 > 2`, 1),
		testutil.TransformStep(`"never runs"`),
	))
	require.NoError(t, fileStore.SaveWorkflow(context.Background(), workflow))

	result, err := executor.Run(context.Background(), workflow.ID, map[string]any{"source": "bus"})
	require.NoError(t, err)
	require.True(t, result.Success)

	collected := collectEvents(t, received, 7)

	started, ok := collected[0].(*events.ExecutionStarted)
	require.True(t, ok)
	assert.Equal(t, events.ExecutionStartedEvent, started.GetType())
	assert.Equal(t, workflow.ID, started.WorkflowID)
	assert.Equal(t, result.ExecutionID, started.ExecutionID)
	assert.Equal(t, map[string]any{"source": "bus"}, started.TriggerData)

	firstStepStarted, ok := collected[1].(*events.StepStarted)
	require.True(t, ok)
	assert.Equal(t, 0, firstStepStarted.Position)
	assert.Equal(t, "transform", firstStepStarted.StepType)

	firstStepCompleted, ok := collected[2].(*events.StepCompleted)
	require.True(t, ok)
	assert.Equal(t, 0, firstStepCompleted.Position)
	assert.InDelta(t, 2.0, firstStepCompleted.Output, 0)

	_, ok = collected[3].(*events.StepStarted)
	require.True(t, ok)

	conditionCompleted, ok := collected[4].(*events.StepCompleted)
	require.True(t, ok)
	assert.Equal(t, 1, conditionCompleted.Position)

	skipped, ok := collected[5].(*events.StepSkipped)
	require.True(t, ok)
	assert.Equal(t, 2, skipped.Position)

	completed, ok := collected[6].(*events.ExecutionCompleted)
	require.True(t, ok)
	assert.Equal(t, 3, completed.StepCount)
	assert.Equal(t, result.ExecutionID, completed.ExecutionID)
}

func TestWatermillEventBusDeliversFailureLifecycle(t *testing.T) {
	t.Parallel()

	bus, received := newTestBus(t)
	executor, fileStore := newBusExecutor(t, bus)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(
		testutil.TransformStep(`this is not ( a valid expression`),
	))
	require.NoError(t, fileStore.SaveWorkflow(context.Background(), workflow))

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.False(t, result.Success)

	collected := collectEvents(t, received, 4)

	_, ok := collected[0].(*events.ExecutionStarted)
	require.True(t, ok)

	_, ok = collected[1].(*events.StepStarted)
	require.True(t, ok)

	stepFailed, ok := collected[2].(*events.StepFailed)
	require.True(t, ok)
	assert.Equal(t, 0, stepFailed.Position)
	assert.NotEmpty(t, stepFailed.Error)

	executionFailed, ok := collected[3].(*events.ExecutionFailed)
	require.True(t, ok)
	assert.Contains(t, executionFailed.Error, "Failed at step 1:")
	assert.Equal(t, result.ExecutionID, executionFailed.ExecutionID)
}
