// Package cmd provides common initialization for the command-line entrypoints.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stepline/stepline/pkg/store"
	"github.com/stepline/stepline/pkg/store/file"
	"github.com/stepline/stepline/pkg/store/mysql"
	"github.com/stepline/stepline/pkg/store/postgres"
)

// NewStore builds a store from a database URL. The scheme selects the
// backend; anything without a recognized scheme is treated as a file path.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) store.Store {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		postgresStore, err := postgres.NewStore(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL store: %w", err))
		}

		return postgresStore
	case strings.HasPrefix(databaseURL, "mysql://"):
		mysqlStore, err := mysql.NewStore(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create MySQL store: %w", err))
		}

		return mysqlStore
	default:
		return file.NewStore(strings.TrimPrefix(databaseURL, "file://"))
	}
}
