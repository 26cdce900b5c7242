package registry_test

import (
	"log/slog"
	"testing"

	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryHasAllStepTypes(t *testing.T) {
	t.Parallel()

	reg := registry.NewDefaultRegistry(slog.Default())

	expected := []string{
		models.StepTypeCompletion,
		models.StepTypeHTTP,
		models.StepTypeTransform,
		models.StepTypeCondition,
		models.StepTypeEmail,
	}

	assert.ElementsMatch(t, expected, reg.StepTypes())

	for _, stepType := range expected {
		handler, ok := reg.Lookup(stepType)
		require.True(t, ok, "missing handler for %s", stepType)
		assert.Equal(t, stepType, handler.ID())
		assert.NotEmpty(t, handler.Name())
		assert.NotEmpty(t, handler.Schema())
	}
}

func TestRegistryLookupUnknownType(t *testing.T) {
	t.Parallel()

	reg := registry.NewDefaultRegistry(slog.Default())

	_, ok := reg.Lookup("teleport")
	assert.False(t, ok)
}

func TestRegistryValidateConfig(t *testing.T) {
	t.Parallel()

	reg := registry.NewDefaultRegistry(slog.Default())

	tests := []struct {
		name     string
		stepType string
		config   map[string]any
		wantErr  bool
	}{
		{
			name:     "valid http config",
			stepType: models.StepTypeHTTP,
			config:   map[string]any{"url": "https://example.com"},
			wantErr:  false,
		},
		{
			name:     "http config missing url",
			stepType: models.StepTypeHTTP,
			config:   map[string]any{"method": "GET"},
			wantErr:  true,
		},
		{
			name:     "valid transform config",
			stepType: models.StepTypeTransform,
			config:   map[string]any{"expression": "1 + 1"},
			wantErr:  false,
		},
		{
			name:     "transform config missing expression",
			stepType: models.StepTypeTransform,
			config:   map[string]any{},
			wantErr:  true,
		},
		{
			name:     "unknown step type",
			stepType: "teleport",
			config:   map[string]any{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := reg.ValidateConfig(tt.stepType, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
