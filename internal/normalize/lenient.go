package normalize

import (
	"regexp"
	"strings"
)

// knownKeys are the field names the lenient pass looks for, Spanish wire
// names first, English equivalents as fallback.
var knownKeys = []string{
	"tipo", "type", "kind",
	"categoria", "category",
	"monto", "amount",
	"fecha", "date",
	"emisor_receptor", "counterparty", "issuer",
	"descripcion", "description",
	"numero_comprobante", "reference",
	"confianza", "confidence",
}

var lenientPatterns = buildLenientPatterns()

func buildLenientPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(knownKeys))
	for _, key := range knownKeys {
		// Matches `"key": "value"`, `key: value`, `key = value` with optional
		// quoting on both sides.
		patterns[key] = regexp.MustCompile(
			`(?i)"?` + regexp.QuoteMeta(key) + `"?\s*[:=]\s*("(?:[^"\\]|\\.)*"|[^,\n\r}]+)`)
	}
	return patterns
}

// parseLenient extracts key-value pairs by pattern rather than strict
// grammar. It is the recovery pass for responses that cannot be repaired
// into valid JSON.
func parseLenient(text string) map[string]any {
	fields := make(map[string]any)
	for _, key := range knownKeys {
		match := lenientPatterns[key].FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := strings.TrimSpace(match[1])
		value = strings.Trim(value, `"`)
		value = strings.TrimSpace(value)
		if value == "" || strings.EqualFold(value, "null") {
			continue
		}
		fields[strings.ToLower(key)] = value
	}
	return fields
}
