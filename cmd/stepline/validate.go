package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/stepline/stepline/pkg/cmd"
	"github.com/stepline/stepline/pkg/log"
	"github.com/stepline/stepline/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

var ErrInvalidWorkflow = errors.New("workflow is invalid")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate a workflow definition and its step configs",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://, mysql://, or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			workflowID := command.Args().First()
			if workflowID == "" {
				return errors.New("workflow id argument is required")
			}

			logger := log.WithModule("validate")
			validate := validator.New(validator.WithRequiredStructEnabled())

			stepStore := cmd.NewStore(ctx, logger, command.String("database-url"))

			defer func() {
				err := stepStore.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close store", "error", err)
				}
			}()

			workflow, err := stepStore.WorkflowByID(ctx, workflowID)
			if err != nil {
				return err
			}

			reg := registry.NewDefaultRegistry(logger)
			valid := true

			err = validate.Struct(workflow)
			if err != nil {
				valid = false

				fmt.Fprintf(os.Stdout, "workflow: %v\n", err)
			}

			for _, step := range workflow.Steps {
				err = reg.ValidateConfig(step.Type, step.Config)
				if err != nil {
					valid = false

					fmt.Fprintf(os.Stdout, "step %d (%s): %v\n", step.Position+1, step.Type, err)
				}
			}

			if !valid {
				return ErrInvalidWorkflow
			}

			fmt.Fprintf(os.Stdout, "workflow %s is valid (%d steps)\n", workflow.ID, len(workflow.Steps))

			return nil
		},
	}
}
