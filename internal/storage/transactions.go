package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nmoreno/facturia/internal/model"
	"github.com/nmoreno/facturia/internal/service"
)

// Transactions returns persisted records matching the filter, newest first.
func (s *SQLiteStorage) Transactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, kind, category, amount, occurred_on, counterparty, description,
			reference, origin, source_file, message_id, sender,
			processed_by_ai, ai_confidence, requires_review, manually_edited,
			created_at, updated_at
		FROM transactions`

	var conditions []string
	var args []any

	if filter.Start != nil {
		conditions = append(conditions, "occurred_on >= ?")
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		conditions = append(conditions, "occurred_on <= ?")
		args = append(args, *filter.End)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_on DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Transaction
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanTransaction(rows *sql.Rows) (*model.Transaction, error) {
	var record model.Transaction
	var kind, origin, amount string
	var occurredOn sql.NullTime
	var counterparty, description, reference, sourceFile, messageID, sender sql.NullString

	err := rows.Scan(&record.ID, &kind, &record.Category, &amount, &occurredOn,
		&counterparty, &description, &reference, &origin, &sourceFile,
		&messageID, &sender, &record.ProcessedByAI, &record.AIConfidence,
		&record.RequiresReview, &record.ManuallyEdited,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	record.Kind = model.TransactionKind(kind)
	record.Origin = model.DocumentOrigin(origin)
	record.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q for record %s: %w", amount, record.ID, err)
	}
	if occurredOn.Valid {
		record.OccurredOn = occurredOn.Time
	}
	record.Counterparty = counterparty.String
	record.Description = description.String
	record.Reference = reference.String
	record.SourceFile = sourceFile.String
	record.MessageID = messageID.String
	record.Sender = sender.String
	return &record, nil
}

// PeriodSummary aggregates income, expense, and review counts over the
// half-open range [start, end). Amounts are summed in Go so decimal
// precision survives the round trip.
func (s *SQLiteStorage) PeriodSummary(ctx context.Context, start, end time.Time) (*service.PeriodSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, amount, requires_review FROM transactions
		WHERE occurred_on >= ? AND occurred_on < ?
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query period: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := &service.PeriodSummary{Start: start, End: end}
	for rows.Next() {
		var kind, amount string
		var review bool
		if err := rows.Scan(&kind, &amount, &review); err != nil {
			return nil, fmt.Errorf("failed to scan period row: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		switch model.TransactionKind(kind) {
		case model.KindIncome:
			summary.TotalIncome = summary.TotalIncome.Add(value)
			summary.IncomeCount++
		case model.KindExpense:
			summary.TotalExpense = summary.TotalExpense.Add(value)
			summary.ExpenseCount++
		}
		if review {
			summary.PendingReview++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	summary.Balance = summary.TotalIncome.Sub(summary.TotalExpense)
	return summary, nil
}

// TopCategories returns the categories with the highest totals for a kind.
func (s *SQLiteStorage) TopCategories(ctx context.Context, kind model.TransactionKind, limit int) ([]service.CategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, amount FROM transactions WHERE kind = ?
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := make(map[string]*service.CategoryTotal)
	for rows.Next() {
		var category, amount string
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		entry, ok := totals[category]
		if !ok {
			entry = &service.CategoryTotal{Category: category}
			totals[category] = entry
		}
		entry.Total = entry.Total.Add(value)
		entry.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]service.CategoryTotal, 0, len(totals))
	for _, entry := range totals {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Total.GreaterThan(result[j].Total)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
