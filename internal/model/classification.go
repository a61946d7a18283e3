// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind indicates the direction of money movement.
type TransactionKind string

const (
	// KindIncome represents money coming in.
	KindIncome TransactionKind = "income"
	// KindExpense represents money going out.
	KindExpense TransactionKind = "expense"
)

// Valid reports whether the kind is one of the known values.
func (k TransactionKind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Classification is the typed output of the remote service after
// normalization, before validation has been applied.
type Classification struct {
	Kind         TransactionKind
	Category     string
	Amount       decimal.Decimal
	OccurredOn   time.Time
	Counterparty string
	Description  string
	Reference    string // document reference number, e.g. "001-00123456"
	Confidence   float64
}
