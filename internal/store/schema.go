package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    months INTEGER NOT NULL,
    initial_population INTEGER NOT NULL,
    runs INTEGER NOT NULL,
    base_seed TEXT NOT NULL,  -- decimal uint64, may exceed INTEGER range
    workers INTEGER NOT NULL,
    survival_method TEXT NOT NULL,
    litter_policy TEXT NOT NULL,
    config TEXT NOT NULL,     -- JSON
    report TEXT NOT NULL,     -- JSON
    elapsed_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_created ON batches(created_at);

CREATE TABLE IF NOT EXISTS runs (
    batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    run_index INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    final_alive INTEGER NOT NULL,
    final_females INTEGER NOT NULL,
    final_males INTEGER NOT NULL,
    total_deaths INTEGER NOT NULL,
    total_births INTEGER NOT NULL,
    peak INTEGER NOT NULL,
    peak_month INTEGER NOT NULL,
    trough INTEGER NOT NULL,
    trough_month INTEGER NOT NULL,
    population_months INTEGER NOT NULL,
    months_simulated INTEGER NOT NULL,
    extinction_month INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL,
    PRIMARY KEY (batch_id, run_index)
);

CREATE TABLE IF NOT EXISTS months (
    batch_id TEXT NOT NULL,
    run_index INTEGER NOT NULL,
    month INTEGER NOT NULL,
    alive INTEGER NOT NULL,
    males INTEGER NOT NULL,
    females INTEGER NOT NULL,
    births INTEGER NOT NULL,
    deaths INTEGER NOT NULL,
    PRIMARY KEY (batch_id, run_index, month),
    FOREIGN KEY (batch_id, run_index) REFERENCES runs(batch_id, run_index) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database and checks integrity on
// an existing one.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

// schemaVersion returns an error if the schema_version table doesn't exist.
func schemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version sql.NullInt64
	if err := db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_version`); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

func createSchema(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA foreign_key_check.
func ValidateIntegrity(ctx context.Context, db *sqlx.DB) error {
	var results []string
	if err := db.SelectContext(ctx, &results, `PRAGMA integrity_check`); err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	for _, r := range results {
		if r != "ok" {
			return fmt.Errorf("integrity_check failed: %s", r)
		}
	}

	rows, err := db.QueryxContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer rows.Close()

	var fkErrors []string
	for rows.Next() {
		var table, parent string
		var rowid, fkid sql.NullInt64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%d parent=%s", table, rowid.Int64, parent))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}
	return nil
}
