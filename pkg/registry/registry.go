// Package registry maps step type tags to their handler implementations.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stepline/stepline/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger   *slog.Logger
	handlers map[string]protocol.Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[string]protocol.Handler),
	}
}

func (r *Registry) Register(handler protocol.Handler) {
	r.handlers[handler.ID()] = handler
}

// Lookup returns the handler for a step type tag, or false when none is
// registered. The executor turns the false case into a step failure.
func (r *Registry) Lookup(stepType string) (protocol.Handler, bool) {
	handler, ok := r.handlers[stepType]

	return handler, ok
}

// StepTypes returns the registered step type tags.
func (r *Registry) StepTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for stepType := range r.handlers {
		types = append(types, stepType)
	}

	return types
}

// ValidateConfig checks a step config against the handler's JSON schema.
// Template placeholders are still unresolved at validation time, so the
// schemas constrain shape and required keys, not resolved values.
func (r *Registry) ValidateConfig(stepType string, config map[string]any) error {
	handler, ok := r.handlers[stepType]
	if !ok {
		return fmt.Errorf("step type '%s' not registered", stepType)
	}

	schemaJSON, err := json.Marshal(handler.Schema())
	if err != nil {
		return fmt.Errorf("failed to marshal schema for '%s': %w", stepType, err)
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for '%s': %w", stepType, err)
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			return fmt.Errorf("invalid config for '%s': %s", stepType, desc)
		}
	}

	return nil
}
