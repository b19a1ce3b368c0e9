// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema is the DDL the repositories in this package expect.
//
//go:embed schema.sql
var Schema string

// ApplySchema creates any missing tables and indexes. Used by tests and
// local runs; production schemas are managed outside this service.
func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
