package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nmoreno/facturia/internal/model"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: transactions and processed documents",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					kind TEXT NOT NULL,
					category TEXT NOT NULL,
					amount TEXT NOT NULL,
					occurred_on DATETIME,
					counterparty TEXT,
					description TEXT,
					reference TEXT,
					origin TEXT NOT NULL,
					source_file TEXT,
					message_id TEXT,
					sender TEXT,
					processed_by_ai INTEGER NOT NULL DEFAULT 0,
					ai_confidence REAL NOT NULL DEFAULT 0,
					requires_review INTEGER NOT NULL DEFAULT 0,
					manually_edited INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_occurred_on ON transactions(occurred_on)`,
				`CREATE INDEX idx_transactions_category ON transactions(category)`,
				`CREATE INDEX idx_transactions_kind ON transactions(kind)`,
				`CREATE INDEX idx_transactions_review ON transactions(requires_review)`,

				// The dedup key. The uniqueness constraints make the exists
				// check and the insert the same operation: a replayed
				// document cannot commit twice.
				`CREATE TABLE IF NOT EXISTS processed_documents (
					message_id TEXT NOT NULL,
					filename TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					record_count INTEGER NOT NULL DEFAULT 0,
					processed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (message_id, filename)
				)`,
				`CREATE UNIQUE INDEX idx_processed_documents_fingerprint ON processed_documents(fingerprint)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Category catalog",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					kind TEXT NOT NULL,
					description TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`)
			if err != nil {
				return err
			}

			stmt, err := tx.Prepare(`INSERT OR IGNORE INTO categories (name, kind) VALUES (?, ?)`)
			if err != nil {
				return fmt.Errorf("failed to prepare category seed: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			for _, name := range model.IncomeCategories {
				if _, err := stmt.Exec(name, string(model.KindIncome)); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", name, err)
				}
			}
			for _, name := range model.ExpenseCategories {
				if _, err := stmt.Exec(name, string(model.KindExpense)); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Ingest failure bookkeeping",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS ingest_failures (
					message_id TEXT NOT NULL,
					filename TEXT NOT NULL,
					attempts INTEGER NOT NULL DEFAULT 0,
					last_error TEXT,
					diagnostic TEXT,
					permanent INTEGER NOT NULL DEFAULT 0,
					last_attempt_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (message_id, filename)
				)
			`)
			return err
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
