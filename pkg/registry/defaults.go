package registry

import (
	"log/slog"

	"github.com/stepline/stepline/pkg/expression"
	"github.com/stepline/stepline/pkg/handlers/completion"
	"github.com/stepline/stepline/pkg/handlers/condition"
	"github.com/stepline/stepline/pkg/handlers/email"
	"github.com/stepline/stepline/pkg/handlers/httpcall"
	"github.com/stepline/stepline/pkg/handlers/transform"
)

// NewDefaultRegistry builds a registry with the five built-in step handlers.
// The transform and condition handlers share one expression engine so compiled
// programs are cached across both.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	reg := NewRegistry(logger)
	engine := expression.NewEngine()

	reg.Register(completion.NewHandler(logger))
	reg.Register(httpcall.NewHandler(logger))
	reg.Register(transform.NewHandler(logger, engine))
	reg.Register(condition.NewHandler(logger, engine))
	reg.Register(email.NewHandler(logger))

	return reg
}
