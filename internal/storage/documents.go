package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nmoreno/facturia/internal/common"
	"github.com/nmoreno/facturia/internal/model"
)

// DocumentProcessed reports whether the dedup key is already committed:
// either the (message_id, filename) pair or the content fingerprint exists.
func (s *SQLiteStorage) DocumentProcessed(ctx context.Context, key model.DocumentKey) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM processed_documents
		WHERE (message_id = ? AND filename = ?) OR fingerprint = ?
	`, key.MessageID, key.Filename, key.Fingerprint).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check processed documents: %w", err)
	}
	return count > 0, nil
}

// CommitDocument writes the dedup key and its transaction records in one
// database transaction. Either everything lands or nothing does.
func (s *SQLiteStorage) CommitDocument(ctx context.Context, key model.DocumentKey, records []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_documents (message_id, filename, fingerprint, record_count)
		VALUES (?, ?, ?, ?)
	`, key.MessageID, key.Filename, key.Fingerprint, len(records))
	if err != nil {
		return fmt.Errorf("failed to record document key: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to inspect key insert: %w", err)
	}
	if inserted == 0 {
		return fmt.Errorf("%w: %s", common.ErrDuplicate, key)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, kind, category, amount, occurred_on, counterparty, description,
			reference, origin, source_file, message_id, sender,
			processed_by_ai, ai_confidence, requires_review, manually_edited,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, record := range records {
		var occurredOn any
		if !record.OccurredOn.IsZero() {
			occurredOn = record.OccurredOn
		}
		_, err := stmt.ExecContext(ctx,
			record.ID, string(record.Kind), record.Category, record.Amount.String(),
			occurredOn, record.Counterparty, record.Description, record.Reference,
			string(record.Origin), record.SourceFile, record.MessageID, record.Sender,
			record.ProcessedByAI, record.AIConfidence, record.RequiresReview,
			record.ManuallyEdited, record.CreatedAt, record.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", record.ID, err)
		}
	}

	// A successful commit also clears any failure history for the document.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ingest_failures WHERE message_id = ? AND filename = ?
	`, key.MessageID, key.Filename); err != nil {
		return fmt.Errorf("failed to clear failure history: %w", err)
	}

	return tx.Commit()
}

// RecordFailure increments the failure counter for a document and marks it
// permanent once maxAttempts is reached. Returns whether the document is now
// permanently failed.
func (s *SQLiteStorage) RecordFailure(ctx context.Context, key model.DocumentKey, reason, diagnostic string, maxAttempts int) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_failures (message_id, filename, attempts, last_error, diagnostic, last_attempt_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(message_id, filename) DO UPDATE SET
			attempts = attempts + 1,
			last_error = excluded.last_error,
			diagnostic = excluded.diagnostic,
			last_attempt_at = excluded.last_attempt_at
	`, key.MessageID, key.Filename, reason, diagnostic, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record failure: %w", err)
	}

	var attempts int
	err = s.db.QueryRowContext(ctx, `
		SELECT attempts FROM ingest_failures WHERE message_id = ? AND filename = ?
	`, key.MessageID, key.Filename).Scan(&attempts)
	if err != nil {
		return false, fmt.Errorf("failed to read failure attempts: %w", err)
	}

	if maxAttempts > 0 && attempts >= maxAttempts {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE ingest_failures SET permanent = 1 WHERE message_id = ? AND filename = ?
		`, key.MessageID, key.Filename); err != nil {
			return false, fmt.Errorf("failed to mark failure permanent: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// FailureAttempts returns the failure record for a document, or ErrNotFound.
func (s *SQLiteStorage) FailureAttempts(ctx context.Context, messageID, filename string) (*model.IngestFailure, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var f model.IngestFailure
	var lastError, diagnostic sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, filename, attempts, last_error, diagnostic, permanent, last_attempt_at
		FROM ingest_failures WHERE message_id = ? AND filename = ?
	`, messageID, filename).Scan(
		&f.MessageID, &f.Filename, &f.Attempts, &lastError, &diagnostic,
		&f.Permanent, &f.LastAttemptAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read failure record: %w", err)
	}
	f.LastError = lastError.String
	f.Diagnostic = diagnostic.String
	return &f, nil
}

// ClearFailures removes the failure history for a document.
func (s *SQLiteStorage) ClearFailures(ctx context.Context, messageID, filename string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM ingest_failures WHERE message_id = ? AND filename = ?
	`, messageID, filename)
	if err != nil {
		return fmt.Errorf("failed to clear failures: %w", err)
	}
	return nil
}

// PermanentFailures lists documents past the retry cap, surfaced for manual
// handling.
func (s *SQLiteStorage) PermanentFailures(ctx context.Context) ([]model.IngestFailure, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, filename, attempts, last_error, diagnostic, permanent, last_attempt_at
		FROM ingest_failures WHERE permanent = 1
		ORDER BY last_attempt_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query permanent failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var failures []model.IngestFailure
	for rows.Next() {
		var f model.IngestFailure
		var lastError, diagnostic sql.NullString
		if err := rows.Scan(&f.MessageID, &f.Filename, &f.Attempts, &lastError,
			&diagnostic, &f.Permanent, &f.LastAttemptAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		f.LastError = lastError.String
		f.Diagnostic = diagnostic.String
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
