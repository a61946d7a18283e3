package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the persisted record produced by the pipeline for one
// accepted document (or one CSV row). Only the review UI mutates it after
// creation; the pipeline never deletes it.
type Transaction struct {
	ID             string
	Kind           TransactionKind
	Category       string
	Amount         decimal.Decimal
	OccurredOn     time.Time
	Counterparty   string
	Description    string
	Reference      string
	Origin         DocumentOrigin
	SourceFile     string
	MessageID      string
	Sender         string
	ProcessedByAI  bool
	AIConfidence   float64
	RequiresReview bool
	ManuallyEdited bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
