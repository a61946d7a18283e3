package model

import (
	"strings"
	"time"
)

// Category represents one entry of the fixed classification catalog.
type Category struct {
	CreatedAt   time.Time
	Name        string
	Description string
	Kind        TransactionKind
	ID          int
}

// Canonical category slugs. The catalogs are fixed sets; the remote service
// and CSV imports must land on one of these (or the record gets flagged).
const (
	CategorySalary           = "salary"
	CategoryServiceBilling   = "service_billing"
	CategoryDeposit          = "deposit"
	CategoryTransferReceived = "transfer_received"
	CategorySales            = "sales"
	CategoryOtherIncome      = "other_income"

	CategoryUtilityBill   = "utility_bill"
	CategoryGroceries     = "groceries"
	CategoryTaxes         = "taxes"
	CategoryRent          = "rent"
	CategoryFuel          = "fuel"
	CategoryHealth        = "health"
	CategoryEntertainment = "entertainment"
	CategoryOtherExpense  = "other_expense"
)

// IncomeCategories is the fixed catalog for income transactions.
var IncomeCategories = []string{
	CategorySalary,
	CategoryServiceBilling,
	CategoryDeposit,
	CategoryTransferReceived,
	CategorySales,
	CategoryOtherIncome,
}

// ExpenseCategories is the fixed catalog for expense transactions.
var ExpenseCategories = []string{
	CategoryUtilityBill,
	CategoryGroceries,
	CategoryTaxes,
	CategoryRent,
	CategoryFuel,
	CategoryHealth,
	CategoryEntertainment,
	CategoryOtherExpense,
}

// categoryAliases maps the Spanish slugs used on the wire by the
// classification service to canonical catalog slugs.
var categoryAliases = map[string]string{
	"sueldo":                 CategorySalary,
	"cobro_servicios":        CategoryServiceBilling,
	"deposito":               CategoryDeposit,
	"transferencia_recibida": CategoryTransferReceived,
	"ventas":                 CategorySales,
	"otro_ingreso":           CategoryOtherIncome,

	"factura_servicios": CategoryUtilityBill,
	"supermercado":      CategoryGroceries,
	"impuestos":         CategoryTaxes,
	"alquiler":          CategoryRent,
	"combustible":       CategoryFuel,
	"salud":             CategoryHealth,
	"entretenimiento":   CategoryEntertainment,
	"otro_egreso":       CategoryOtherExpense,
}

// CatalogFor returns the category catalog for the given kind.
func CatalogFor(kind TransactionKind) []string {
	switch kind {
	case KindIncome:
		return IncomeCategories
	case KindExpense:
		return ExpenseCategories
	default:
		return nil
	}
}

// IsValidCategory reports whether category belongs to the catalog for kind.
func IsValidCategory(kind TransactionKind, category string) bool {
	for _, c := range CatalogFor(kind) {
		if c == category {
			return true
		}
	}
	return false
}

// CanonicalCategory normalizes a raw category value to its canonical slug.
// It lowercases, trims, converts spaces and dashes to underscores, and
// resolves Spanish wire aliases. The second return is false when the value
// does not resolve to any known category.
func CanonicalCategory(raw string) (string, bool) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	slug = strings.NewReplacer(" ", "_", "-", "_").Replace(slug)
	if canonical, ok := categoryAliases[slug]; ok {
		return canonical, true
	}
	if IsValidCategory(KindIncome, slug) || IsValidCategory(KindExpense, slug) {
		return slug, true
	}
	return slug, false
}

// FallbackCategory returns the catch-all bucket for the given kind.
func FallbackCategory(kind TransactionKind) string {
	if kind == KindIncome {
		return CategoryOtherIncome
	}
	return CategoryOtherExpense
}
