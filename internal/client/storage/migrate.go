package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/groundwatch/internal/client/migrations"
	"github.com/pressly/goose/v3"
)

// SchemaVersion is the migration version the code expects.
const SchemaVersion int64 = 2

// RunMigrations brings db up to SchemaVersion. It is a no-op on an
// up-to-date database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// CurrentVersion reports the applied schema version.
func CurrentVersion(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}
	v, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
