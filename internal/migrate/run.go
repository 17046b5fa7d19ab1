// Package migrate applies the SQL migrations embedded alongside it. Each file
// runs once, inside its own transaction, with the applied version recorded in
// schema_migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run applies every embedded migration that has not run yet, in filename
// order. Calling it against an up-to-date database is a no-op.
func Run(ctx context.Context, db *sql.DB) error {
	logger := slog.Default().With("component", "migrations")

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	// Glob results come back lexically sorted, which is the apply order:
	// files are named NNNN_description.sql.
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	for _, file := range files {
		version := strings.TrimSuffix(path.Base(file), ".sql")

		applied, appliedErr := versionApplied(ctx, db, version)
		if appliedErr != nil {
			return appliedErr
		}
		if applied {
			continue
		}

		if applyErr := applyFile(ctx, db, logger, file, version); applyErr != nil {
			return fmt.Errorf("apply %s: %w", version, applyErr)
		}
	}
	return nil
}

func versionApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var applied bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`,
		version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return applied, nil
}

// applyFile executes one migration and records its version in the same
// transaction, so a failed migration leaves no trace.
func applyFile(ctx context.Context, db *sql.DB, logger *slog.Logger, file, version string) error {
	script, err := migrationsFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	logger.InfoContext(ctx, "applying migration", "version", version)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "migration rollback failed",
				"version", version,
				"error", rbErr,
			)
		}
	}()

	if _, execErr := tx.ExecContext(ctx, string(script)); execErr != nil {
		return fmt.Errorf("exec: %w", execErr)
	}
	if _, recErr := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, version,
	); recErr != nil {
		return fmt.Errorf("record version: %w", recErr)
	}

	return tx.Commit()
}
