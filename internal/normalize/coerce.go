package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nmoreno/facturia/internal/model"
)

// dateLayouts are the accepted occurred-on date formats, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
}

var currencyJunk = regexp.MustCompile(`[^\d.,\-]`)

// coerce builds a typed Classification from the parsed field map,
// defensively converting every value. A coercion failure on a required
// field (kind, amount) is an error; optional fields degrade to zero values.
func coerce(fields map[string]any) (*model.Classification, error) {
	result := &model.Classification{}

	rawKind, ok := pick(fields, "tipo", "type", "kind")
	if !ok {
		return nil, fmt.Errorf("missing required field: tipo")
	}
	kind, err := coerceKind(rawKind)
	if err != nil {
		return nil, err
	}
	result.Kind = kind

	rawAmount, ok := pick(fields, "monto", "amount")
	if !ok {
		return nil, fmt.Errorf("missing required field: monto")
	}
	amount, err := coerceAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	result.Amount = amount

	if raw, ok := pick(fields, "categoria", "category"); ok {
		slug, _ := model.CanonicalCategory(asString(raw))
		result.Category = slug
	}

	if raw, ok := pick(fields, "fecha", "date"); ok {
		when, dateErr := coerceDate(raw)
		if dateErr != nil {
			return nil, dateErr
		}
		result.OccurredOn = when
	}

	if raw, ok := pick(fields, "emisor_receptor", "counterparty", "issuer"); ok {
		result.Counterparty = strings.TrimSpace(asString(raw))
	}
	if raw, ok := pick(fields, "descripcion", "description"); ok {
		result.Description = strings.TrimSpace(asString(raw))
	}
	if raw, ok := pick(fields, "numero_comprobante", "reference"); ok {
		result.Reference = strings.TrimSpace(asString(raw))
	}

	if raw, ok := pick(fields, "confianza", "confidence"); ok {
		result.Confidence = coerceConfidence(raw)
	}

	return result, nil
}

func pick(fields map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := fields[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && (s == "" || strings.EqualFold(s, "null")) {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func coerceKind(raw any) (model.TransactionKind, error) {
	switch strings.ToLower(strings.TrimSpace(asString(raw))) {
	case "ingreso", "income":
		return model.KindIncome, nil
	case "egreso", "expense", "gasto":
		return model.KindExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction kind: %q", asString(raw))
	}
}

func coerceAmount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q: %w", v.String(), err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		s := currencyJunk.ReplaceAllString(strings.TrimSpace(v), "")
		// "1.234,56" style: dot thousands, comma decimals.
		if strings.Contains(s, ",") && strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q: %w", v, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("invalid amount type %T", raw)
	}
}

func coerceDate(raw any) (time.Time, error) {
	s := strings.TrimSpace(asString(raw))
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if when, err := time.Parse(layout, s); err == nil {
			return when, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

func coerceConfidence(raw any) float64 {
	var score float64
	switch v := raw.(type) {
	case json.Number:
		score, _ = v.Float64()
	case float64:
		score = v
	case string:
		s := strings.TrimSpace(v)
		if strings.HasSuffix(s, "%") {
			s = strings.TrimSuffix(s, "%")
			if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
				f, _ := d.Float64()
				score = f / 100.0
			}
		} else if d, err := decimal.NewFromString(s); err == nil {
			score, _ = d.Float64()
		}
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ParseAmount parses a loosely formatted monetary amount: currency symbols
// are stripped, both "1,234.56" and "1.234,56" styles are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	return coerceAmount(s)
}

// ParseDate parses a date in any of the accepted layouts. An empty string
// yields the zero time without error.
func ParseDate(s string) (time.Time, error) {
	return coerceDate(s)
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
