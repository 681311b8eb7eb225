package testutil

import (
	"context"
	"fmt"

	"github.com/bissquit/songline/internal/pkg/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StartDatabase starts a postgres container, applies the migrations in dir
// and returns the container with a connected pool.
func StartDatabase(ctx context.Context, migrationsDir string) (*PostgresContainer, *pgxpool.Pool, error) {
	container, err := NewPostgresContainer(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := postgres.Migrate(container.ConnectionString, migrationsDir); err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	pool, err := postgres.Connect(ctx, postgres.Config{
		URL:             container.ConnectionString,
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnectAttempts: 3,
	})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	return container, pool, nil
}
