// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nmoreno/facturia/internal/model"
)

// Storage defines the contract for the persistence collaborator. The
// pipeline treats each record commit as atomic: the dedup key and its
// transaction records are written together or not at all.
type Storage interface {
	// Dedup operations.
	DocumentProcessed(ctx context.Context, key model.DocumentKey) (bool, error)
	CommitDocument(ctx context.Context, key model.DocumentKey, records []model.Transaction) error

	// Failure bookkeeping.
	RecordFailure(ctx context.Context, key model.DocumentKey, reason, diagnostic string, maxAttempts int) (permanent bool, err error)
	FailureAttempts(ctx context.Context, messageID, filename string) (*model.IngestFailure, error)
	ClearFailures(ctx context.Context, messageID, filename string) error
	PermanentFailures(ctx context.Context) ([]model.IngestFailure, error)

	// Category operations.
	Categories(ctx context.Context) ([]model.Category, error)
	IsValidCategory(ctx context.Context, kind model.TransactionKind, category string) (bool, error)

	// Reporting operations for the dashboard collaborator.
	Transactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	PeriodSummary(ctx context.Context, start, end time.Time) (*PeriodSummary, error)
	TopCategories(ctx context.Context, kind model.TransactionKind, limit int) ([]CategoryTotal, error)

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// DocumentSource yields the documents to ingest for one cycle. Delivery is
// at-least-once; duplicates and replays must be tolerated downstream.
type DocumentSource interface {
	FetchDocuments(ctx context.Context) ([]model.Document, error)
}

// Notifier receives the summary of a completed ingestion cycle.
// Fire-and-forget: a notification failure never rolls back ingestion.
type Notifier interface {
	Notify(ctx context.Context, summary BatchSummary) error
}

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	Start    *time.Time
	End      *time.Time
	Kind     model.TransactionKind
	Category string
	Limit    int
}

// BatchSummary accumulates the outcome counters of one ingestion cycle.
type BatchSummary struct {
	StartedAt        time.Time
	Duration         time.Duration
	Created          int
	Skipped          int
	Failed           int
	FlaggedForReview int
	Deferred         int
	Samples          []model.Transaction
}

// Total returns the number of documents the cycle saw.
func (b BatchSummary) Total() int {
	return b.Created + b.Skipped + b.Failed + b.Deferred
}

// PeriodSummary aggregates persisted records over a date range.
type PeriodSummary struct {
	Start         time.Time
	End           time.Time
	TotalIncome   decimal.Decimal
	TotalExpense  decimal.Decimal
	Balance       decimal.Decimal
	IncomeCount   int
	ExpenseCount  int
	PendingReview int
}

// CategoryTotal is one row of a per-category breakdown.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}
