package migrations

import (
	"context"
	"fmt"

	"solana-fee-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, bodies, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for i, file := range files {
		if _, err := pool.Exec(ctx, bodies[i]); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
