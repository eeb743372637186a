// Package migrations creates the harness schema. Migrations are plain
// SQL statements applied in order; DuckDB files are per-harness and
// short-lived, so there is no version table, every statement is
// idempotent instead.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		mode VARCHAR NOT NULL,
		register VARCHAR NOT NULL,
		launch VARCHAR NOT NULL,
		send INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		loop_count INTEGER NOT NULL,
		result JSON NOT NULL
	)`,
}

// Run applies all migrations.
func Run(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
