package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// RunSQLiteMigrations applies all embedded SQLite files in lexical order.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	files, bodies, err := sqlFiles(SQLiteFS, "sqlite")
	if err != nil {
		return err
	}

	for i, file := range files {
		for _, stmt := range splitStatements(bodies[i]) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}
	return nil
}
