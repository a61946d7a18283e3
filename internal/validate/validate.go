// Package validate enforces business rules on typed classification results
// and resolves counterparty identities before records are persisted.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nmoreno/facturia/internal/model"
)

// DefaultReviewThreshold is the confidence cutoff below which a record is
// flagged for manual review.
const DefaultReviewThreshold = 0.80

// futureTolerance allows occurred-on dates up to one day ahead, covering
// timezone skew on same-day documents.
const futureTolerance = 24 * time.Hour

// CategoryChecker answers whether a category belongs to the catalog for a
// kind. The persistence layer implements it; tests can use CatalogChecker.
type CategoryChecker interface {
	IsValidCategory(ctx context.Context, kind model.TransactionKind, category string) (bool, error)
}

// CatalogChecker validates against the built-in catalogs without storage.
type CatalogChecker struct{}

// IsValidCategory implements CategoryChecker over the fixed catalogs.
func (CatalogChecker) IsValidCategory(_ context.Context, kind model.TransactionKind, category string) (bool, error) {
	return model.IsValidCategory(kind, category), nil
}

// Validator applies the record checks. Review is advisory, not a gate: a
// failed check flags the record but never blocks persistence.
type Validator struct {
	categories CategoryChecker
	logger     *slog.Logger
	threshold  float64
}

// New creates a Validator with the given review-confidence threshold.
func New(categories CategoryChecker, threshold float64, logger *slog.Logger) *Validator {
	if threshold <= 0 {
		threshold = DefaultReviewThreshold
	}
	if categories == nil {
		categories = CatalogChecker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{categories: categories, threshold: threshold, logger: logger}
}

// Validate builds the persistable record for one classification. The
// returned bool is true when the record needs manual review. All checks are
// independent; every one must pass for reviewNeeded=false.
func (v *Validator) Validate(ctx context.Context, cls *model.Classification, doc *model.Document) (*model.Transaction, bool, error) {
	var reasons []string

	if !cls.Amount.IsPositive() {
		reasons = append(reasons, fmt.Sprintf("non-positive amount %s", cls.Amount))
	}

	if !cls.Kind.Valid() {
		reasons = append(reasons, fmt.Sprintf("unknown kind %q", cls.Kind))
	} else {
		valid, err := v.categories.IsValidCategory(ctx, cls.Kind, cls.Category)
		if err != nil {
			return nil, false, fmt.Errorf("category lookup failed: %w", err)
		}
		if !valid {
			reasons = append(reasons, fmt.Sprintf("category %q not in %s catalog", cls.Category, cls.Kind))
		}
	}

	if !cls.OccurredOn.IsZero() && cls.OccurredOn.After(time.Now().Add(futureTolerance)) {
		reasons = append(reasons, fmt.Sprintf("occurred-on date %s is in the future", cls.OccurredOn.Format("2006-01-02")))
	}

	if cls.Confidence < v.threshold {
		reasons = append(reasons, fmt.Sprintf("confidence %.2f below threshold %.2f", cls.Confidence, v.threshold))
	}

	counterparty := cls.Counterparty
	if Implausible(counterparty) {
		counterparty = ResolveCounterparty(doc.Sender)
	}

	now := time.Now().UTC()
	record := &model.Transaction{
		ID:             uuid.NewString(),
		Kind:           cls.Kind,
		Category:       cls.Category,
		Amount:         cls.Amount,
		OccurredOn:     cls.OccurredOn,
		Counterparty:   counterparty,
		Description:    cls.Description,
		Reference:      cls.Reference,
		Origin:         doc.Origin,
		SourceFile:     doc.Filename,
		MessageID:      doc.MessageID,
		Sender:         doc.Sender,
		ProcessedByAI:  doc.Origin != model.OriginCSV,
		AIConfidence:   cls.Confidence,
		RequiresReview: len(reasons) > 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if record.RequiresReview {
		v.logger.Debug("record flagged for review",
			"message_id", doc.MessageID,
			"filename", doc.Filename,
			"reasons", reasons)
	}

	return record, record.RequiresReview, nil
}
