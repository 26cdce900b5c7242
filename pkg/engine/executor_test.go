package engine_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stepline/stepline/pkg/engine"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/registry"
	"github.com/stepline/stepline/pkg/store"
	"github.com/stepline/stepline/pkg/store/file"
	"github.com/stepline/stepline/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestExecutor(t *testing.T) (*engine.Executor, store.Store) {
	t.Helper()

	logger := slog.Default()
	fileStore := file.NewStore(t.TempDir())
	t.Cleanup(func() {
		_ = fileStore.Close(context.Background())
	})

	return engine.NewExecutor(logger, fileStore, registry.NewDefaultRegistry(logger)), fileStore
}

func saveWorkflow(t *testing.T, s store.Store, steps ...*models.Step) *models.Workflow {
	t.Helper()

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(steps...))

	require.NoError(t, s.SaveWorkflow(context.Background(), workflow))

	return workflow
}

func TestExecutorRunCompletesAllSteps(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore,
		testutil.TransformStep(`1 + 1`),
		testutil.TransformStep(`"hello"`),
		testutil.TransformStep(`[1, 2, 3]`),
	)

	result, err := executor.Run(context.Background(), workflow.ID, map[string]any{"source": "test"})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Empty(t, result.Error)

	execution, err := testStore.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, execution.Error)
	require.NotNil(t, execution.FinishedAt)
	require.NotNil(t, execution.DurationMS)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, stepExecutions, 3)

	for position, stepExecution := range stepExecutions {
		assert.Equal(t, position, stepExecution.Position)
		assert.Equal(t, models.StepStatusCompleted, stepExecution.Status)
		require.NotNil(t, stepExecution.StartedAt)
		require.NotNil(t, stepExecution.FinishedAt)
	}
}

func TestExecutorRunSeedsTriggerData(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore,
		testutil.TransformStep(`trigger.value * 2`),
	)

	result, err := executor.Run(context.Background(), workflow.ID, map[string]any{"value": 21})
	require.NoError(t, err)
	require.True(t, result.Success)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, stepExecutions, 1)
	assert.InDelta(t, 42.0, stepExecutions[0].Output, 0)
}

func TestExecutorRunPropagatesStepOutputs(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore,
		testutil.TransformStep(`{"result": 3 + 4}`),
		testutil.TransformStep(`"id {{step1.output.result}}"`),
	)

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, stepExecutions, 2)
	assert.Equal(t, "id 7", stepExecutions[1].Output)
}

func TestExecutorRunHaltsOnStepFailure(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore,
		testutil.TransformStep(`"first"`),
		testutil.TransformStep(`this is not ( a valid expression`),
		testutil.TransformStep(`"never runs"`),
	)

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Failed at step 2:")

	execution, err := testStore.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, result.Error, execution.Error)
	require.NotNil(t, execution.FinishedAt)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, stepExecutions, 2)
	assert.Equal(t, models.StepStatusCompleted, stepExecutions[0].Status)
	assert.Equal(t, models.StepStatusFailed, stepExecutions[1].Status)
	assert.NotEmpty(t, stepExecutions[1].Error)
}

func TestExecutorRunUnknownStepTypeFailsStep(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore,
		testutil.CreateTestStep(testutil.WithStepType("teleport"), testutil.WithStepConfig(map[string]any{})),
	)

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Failed at step 1:")
	assert.Contains(t, result.Error, `unknown step type "teleport"`)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, stepExecutions, 1)
	assert.Equal(t, models.StepStatusFailed, stepExecutions[0].Status)
}

func TestExecutorRunConditionSkipsFollowingSteps(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore,
		testutil.TransformStep(`"first"`),
		testutil.ConditionStep(`1 > 2`, 2),
		testutil.TransformStep(`"skipped one"`),
		testutil.TransformStep(`"skipped two"`),
		testutil.TransformStep(`"still runs"`),
	)

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	execution, err := testStore.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, stepExecutions, 5)

	assert.Equal(t, models.StepStatusCompleted, stepExecutions[0].Status)
	assert.Equal(t, models.StepStatusCompleted, stepExecutions[1].Status)
	assert.Equal(t, models.StepStatusSkipped, stepExecutions[2].Status)
	assert.Equal(t, models.StepStatusSkipped, stepExecutions[3].Status)
	assert.Equal(t, models.StepStatusCompleted, stepExecutions[4].Status)

	for _, skipped := range stepExecutions[2:4] {
		assert.Nil(t, skipped.StartedAt)
		assert.Nil(t, skipped.FinishedAt)
		assert.Nil(t, skipped.DurationMS)
	}

	assert.Equal(t, "still runs", stepExecutions[4].Output)
}

func TestExecutorRunTruthyConditionSkipsNothing(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore,
		testutil.ConditionStep(`2 > 1`, 5),
		testutil.TransformStep(`"runs"`),
	)

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, stepExecutions, 2)
	assert.Equal(t, models.StepStatusCompleted, stepExecutions[1].Status)
}

func TestExecutorRunRecordsSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	executor, testStore := newTestExecutor(t)
	executor = executor.WithTracer(provider.Tracer("test"))

	workflow := saveWorkflow(t, testStore,
		testutil.TransformStep(`"first"`),
		testutil.TransformStep(`this is not ( a valid expression`),
	)

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.False(t, result.Success)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name)
	}

	assert.ElementsMatch(t, []string{"workflow.run", "workflow.step", "workflow.step"}, names)

	var runSpan, failedStep *tracetest.SpanStub

	for i := range spans {
		switch {
		case spans[i].Name == "workflow.run":
			runSpan = &spans[i]
		case spans[i].Status.Code == codes.Error:
			failedStep = &spans[i]
		}
	}

	require.NotNil(t, runSpan)
	assert.Contains(t, runSpan.Attributes, attribute.String("stepline.workflow.id", workflow.ID))

	require.NotNil(t, failedStep)
	assert.Equal(t, "workflow.step", failedStep.Name)
	assert.NotEmpty(t, failedStep.Status.Description)
}

func TestExecutorRunWorkflowNotFound(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)

	result, err := executor.Run(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, store.IsWorkflowNotFound(err))

	executions, err := testStore.ExecutionsByWorkflow(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestExecutorRunEmptyWorkflowCompletes(t *testing.T) {
	t.Parallel()

	executor, testStore := newTestExecutor(t)
	workflow := saveWorkflow(t, testStore)

	result, err := executor.Run(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	execution, err := testStore.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	stepExecutions, err := testStore.StepExecutionsByExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Empty(t, stepExecutions)
}
