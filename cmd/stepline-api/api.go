// Package main provides the Stepline API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/stepline/stepline/pkg/engine"
	"github.com/stepline/stepline/pkg/eventbus"
	"github.com/stepline/stepline/pkg/registry"
	"github.com/stepline/stepline/pkg/store"
	"github.com/stepline/stepline/pkg/web"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger   *slog.Logger
	store    store.Store
	registry *registry.Registry
	eventBus eventbus.EventBus
	tracer   trace.Tracer
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	stepStore store.Store,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:   logger,
		store:    stepStore,
		registry: reg,
		eventBus: eventBus,
		tracer:   tracer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	executor := engine.NewExecutor(a.logger, a.store, a.registry)
	if a.eventBus != nil {
		executor = executor.WithEventBus(a.eventBus)
	}

	if a.tracer != nil {
		executor = executor.WithTracer(a.tracer)
	}

	handlers := web.NewAPIHandlers(a.logger, a.store, executor, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stepline API")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	e := app.Group("/executions")
	e.Post("/", handlers.ExecuteWorkflow)
	e.Get("/:id", handlers.GetExecution)

	app.Post("/hooks/:workflowID", handlers.Webhook)
	app.Get("/step-types", handlers.GetStepTypes)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
