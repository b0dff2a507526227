package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"nightcircle/internal/logging"
)

// Connect opens a tuned connection pool and verifies it with a ping,
// retrying while the database is still starting up.
func Connect(ctx context.Context, connString string, attempts int) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	if attempts < 1 {
		attempts = 1
	}

	var pool *pgxpool.Pool
	for i := 1; i <= attempts; i++ {
		pool, err = ping(ctx, config)
		if err == nil {
			logging.Info().Int("attempt", i).Msg("connected to PostgreSQL")
			return pool, nil
		}
		logging.Warn().Err(err).Int("attempt", i).Msg("could not connect to PostgreSQL")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("unable to connect after %d attempts: %w", attempts, err)
}

func ping(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	logging.Info().Int("statements", len(migrations)).Msg("migrations applied")
	return nil
}
