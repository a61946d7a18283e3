package csvimport

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nmoreno/facturia/internal/model"
	"github.com/nmoreno/facturia/internal/normalize"
)

// ruleConfidence is the confidence attached to a keyword-rule match; the
// fallback buckets get fallbackConfidence so the record lands in review.
const (
	ruleConfidence     = 1.0
	fallbackConfidence = 0.5
)

type rule struct {
	category string
	keywords []string
}

// Keyword categorization rules for rows without an explicit valid category.
// Keywords cover the local merchants and terms seen in es-AR bank exports.
var incomeRules = []rule{
	{model.CategorySalary, []string{"sueldo", "salario", "salary", "payroll", "remuneracion", "haberes"}},
	{model.CategoryServiceBilling, []string{"cobro", "pago recibido", "factura cobrada", "payment received"}},
	{model.CategoryDeposit, []string{"deposito", "deposit"}},
	{model.CategoryTransferReceived, []string{"transferencia", "transfer", "enviado por"}},
	{model.CategorySales, []string{"venta", "sale", "revenue"}},
}

var expenseRules = []rule{
	{model.CategoryUtilityBill, []string{
		"edenor", "edesur", "metrogas", "telecom", "fibertel", "personal", "movistar",
		"luz", "agua", "gas", "internet", "telefono", "electricity", "water"}},
	{model.CategoryGroceries, []string{
		"carrefour", "coto", "dia", "walmart", "jumbo", "disco", "supermercado",
		"supermarket", "mercado", "grocery"}},
	{model.CategoryTaxes, []string{"afip", "arba", "impuesto", "tax", "contribucion", "tributo", "municipal"}},
	{model.CategoryRent, []string{"alquiler", "rent", "rental", "arriendo"}},
	{model.CategoryFuel, []string{"ypf", "shell", "axion", "combustible", "fuel", "nafta", "gasoil"}},
	{model.CategoryHealth, []string{
		"osde", "swiss medical", "farmacia", "hospital", "clinica", "medico",
		"pharmacy", "health", "medicina", "consulta"}},
	{model.CategoryEntertainment, []string{
		"netflix", "spotify", "cine", "teatro", "restaurant", "entretenimiento",
		"entertainment", "streaming", "disney", "hbo"}},
}

var keywordPatterns = buildKeywordPatterns()

func buildKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp)
	for _, r := range append(append([]rule{}, incomeRules...), expenseRules...) {
		for _, kw := range r.keywords {
			if _, ok := patterns[kw]; !ok {
				patterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			}
		}
	}
	return patterns
}

// Transform converts parsed rows into classification results, assigning a
// category by keyword rules when the row carries none. Rows whose amount
// cannot be coerced are skipped with an error entry.
func Transform(rows []Row) ([]model.Classification, []error) {
	results := make([]model.Classification, 0, len(rows))
	var errs []error

	for i, row := range rows {
		cls, err := transformRow(row)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		results = append(results, *cls)
	}
	return results, errs
}

func transformRow(row Row) (*model.Classification, error) {
	amount, err := normalize.ParseAmount(row.Amount)
	if err != nil {
		return nil, err
	}

	kind := kindFor(row, amount.IsNegative())
	amount = amount.Abs()

	occurredOn, err := normalize.ParseDate(strings.TrimSpace(row.Date))
	if err != nil || occurredOn.IsZero() {
		// Rows without a usable date default to today.
		occurredOn = time.Now().UTC().Truncate(24 * time.Hour)
	}

	cls := &model.Classification{
		Kind:         kind,
		Amount:       amount,
		OccurredOn:   occurredOn,
		Counterparty: strings.TrimSpace(row.Counterparty),
		Description:  strings.TrimSpace(row.Description),
		Reference:    strings.TrimSpace(row.Reference),
	}

	cls.Category, cls.Confidence = categorize(kind, row)
	return cls, nil
}

func kindFor(row Row, negativeAmount bool) model.TransactionKind {
	switch strings.ToLower(strings.TrimSpace(row.Kind)) {
	case "ingreso", "income":
		return model.KindIncome
	case "egreso", "expense", "gasto":
		return model.KindExpense
	}
	if negativeAmount {
		return model.KindExpense
	}
	return model.KindIncome
}

// categorize keeps a valid explicit category, otherwise matches keyword
// rules over the description and counterparty, falling back to the
// catch-all bucket for the kind.
func categorize(kind model.TransactionKind, row Row) (string, float64) {
	if slug, ok := model.CanonicalCategory(row.Category); ok && model.IsValidCategory(kind, slug) {
		return slug, ruleConfidence
	}

	text := strings.ToLower(row.Description + " " + row.Counterparty)

	var rules []rule
	if kind == model.KindIncome {
		rules = incomeRules
	} else {
		rules = expenseRules
	}

	for _, r := range rules {
		for _, kw := range r.keywords {
			if keywordPatterns[kw].MatchString(text) {
				return r.category, ruleConfidence
			}
		}
	}
	return model.FallbackCategory(kind), fallbackConfidence
}
