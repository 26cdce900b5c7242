package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/stepline/stepline/pkg/cmd"
	"github.com/stepline/stepline/pkg/engine"
	"github.com/stepline/stepline/pkg/log"
	"github.com/stepline/stepline/pkg/otelhelper"
	"github.com/stepline/stepline/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

var ErrRunFailed = errors.New("workflow run failed")

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Trigger one manual run of a workflow and print the result",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://, mysql://, or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "trigger-data",
				Usage:   "Trigger payload as a JSON object",
				Value:   "",
				Sources: cli.EnvVars("TRIGGER_DATA"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing (exported over OTLP HTTP)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			workflowID := command.Args().First()
			if workflowID == "" {
				return errors.New("workflow id argument is required")
			}

			logger := log.WithModule("run")

			triggerData := map[string]any{
				"manual":    true,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}

			if raw := command.String("trigger-data"); raw != "" {
				err := json.Unmarshal([]byte(raw), &triggerData)
				if err != nil {
					return fmt.Errorf("invalid trigger data: %w", err)
				}
			}

			stepStore := cmd.NewStore(ctx, logger, command.String("database-url"))

			defer func() {
				err := stepStore.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close store", "error", err)
				}
			}()

			executor := engine.NewExecutor(logger, stepStore, registry.NewDefaultRegistry(logger))

			if command.Bool("tracing") {
				tracerProvider, err := otelhelper.NewTracerProvider(ctx, "stepline")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					err := tracerProvider.Shutdown(ctx)
					if err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()

				executor = executor.WithTracer(tracerProvider.Tracer("stepline"))
			}

			result, err := executor.Run(ctx, workflowID, triggerData)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, string(encoded))

			if !result.Success {
				return ErrRunFailed
			}

			return nil
		},
	}
}
