package cvsqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// requiredTables lists every table VerifyTables checks, in order.
var requiredTables = []string{
	"migrations",
	"decided_values",
	"commit_signatures",
	"undecided_proposals",
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS migrations(
  id INTEGER PRIMARY KEY CHECK (id = 0),
  version INTEGER
);`,
	); err != nil {
		return fmt.Errorf("error getting initial migrations table: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO migrations(id, version) VALUES (0, 0)`,
	); err != nil {
		return fmt.Errorf("error setting initial migration version: %w", err)
	}

	var migrationVersion int
	if err := tx.QueryRowContext(
		ctx, `SELECT version FROM migrations WHERE id=0;`,
	).Scan(&migrationVersion); err != nil {
		return fmt.Errorf("failed to scan migration version: %w", err)
	}

	if err := migrateFrom(ctx, tx, migrationVersion); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

func migrateFrom(ctx context.Context, tx *sql.Tx, version int) error {
	switch version {
	case 0:
		if err := migrateInitial(ctx, tx); err != nil {
			return fmt.Errorf("initial migration: %w", err)
		}
		if err := setMigrationVersion(ctx, tx, 1); err != nil {
			return err
		}
	case 1:
		// Up to date.
		return nil
	default:
		return fmt.Errorf("unknown migration version %d", version)
	}

	// https://sqlite.org/pragma.html#pragma_optimize recommends
	// running optimize after any schema change.
	if _, err := tx.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to run PRAGMA optimize after migration: %w", err)
	}

	return nil
}

func migrateInitial(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(
		ctx,
		// One row per decided height.
		// The value_id column is the commit certificate's value ID.
		`
CREATE TABLE decided_values(
  height INTEGER PRIMARY KEY NOT NULL CHECK (height >= 0),
  round INTEGER NOT NULL CHECK (round >= 0),
  value_id BLOB NOT NULL,
  value BLOB NOT NULL
);`+

			// The certificate's signatures, in their original order.
			`
CREATE TABLE commit_signatures(
  id INTEGER PRIMARY KEY NOT NULL,
  height INTEGER NOT NULL,
  idx INTEGER NOT NULL CHECK (idx >= 0),
  address BLOB NOT NULL,
  signature BLOB NOT NULL,
  FOREIGN KEY(height) REFERENCES decided_values(height),
  UNIQUE (height, idx)
);`+

			// Proposals seen before their height was decided.
			// The automatic id records insertion order;
			// an upsert on the unique key keeps the original id.
			`
CREATE TABLE undecided_proposals(
  id INTEGER PRIMARY KEY NOT NULL,
  height INTEGER NOT NULL CHECK (height >= 0),
  round INTEGER NOT NULL CHECK (round >= 0),
  value_id BLOB NOT NULL,
  valid_round INTEGER NOT NULL,
  proposer BLOB NOT NULL,
  value BLOB NOT NULL,
  validity INTEGER NOT NULL CHECK (validity IN (0, 1)),
  UNIQUE (height, round, value_id)
);`,
	)
	return err
}

func setMigrationVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE migrations SET version = ? WHERE id = 0`, version,
	); err != nil {
		return fmt.Errorf("failed to set migration version to %d: %w", version, err)
	}
	return nil
}
