package storage

import (
	"context"
	"fmt"

	"github.com/nmoreno/facturia/internal/model"
)

// Categories returns the seeded catalog, income first.
func (s *SQLiteStorage) Categories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, COALESCE(description, ''), created_at
		FROM categories ORDER BY kind DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		var kind string
		if err := rows.Scan(&cat.ID, &cat.Name, &kind, &cat.Description, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Kind = model.TransactionKind(kind)
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// IsValidCategory reports whether the category belongs to the catalog for
// the given kind.
func (s *SQLiteStorage) IsValidCategory(ctx context.Context, kind model.TransactionKind, category string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM categories WHERE name = ? AND kind = ?
	`, category, string(kind)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check category: %w", err)
	}
	return count > 0, nil
}
