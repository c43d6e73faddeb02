// Package cmd provides common initialization functions for the
// command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/persistence/file"
	"github.com/outfield-crm/outfield/pkg/persistence/postgres"
	"github.com/outfield-crm/outfield/pkg/persistence/redis"
)

// NewPersistence creates the persistence backend selected by the
// database URL scheme: postgres://, redis:// or a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgres.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		p, err := redis.NewPersistence(ctx, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
