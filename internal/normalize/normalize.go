// Package normalize repairs and parses the classification service's
// semi-structured textual responses into typed results.
//
// The remote service frequently wraps its JSON in markdown fences, duplicates
// structural delimiters through its templating, or appends commentary.
// Normalization is layered: strip wrapping, collapse doubled delimiters,
// strict parse, then a lenient key-value recovery pass. The tolerant-then-
// strict ordering minimizes silent misclassification and should be preserved.
package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nmoreno/facturia/internal/common"
	"github.com/nmoreno/facturia/internal/model"
)

// Normalizer turns raw service responses into typed classifications.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize parses the raw response text. It fails with an error wrapping
// common.ErrUnparseable (carrying both the original and cleaned text) when
// neither the strict nor the lenient pass can recover the required fields.
func (n *Normalizer) Normalize(raw string) (*model.Classification, error) {
	cleaned := StripWrapping(raw)

	fields, err := parseStrict(cleaned)
	if err != nil {
		collapsed := CollapseDelimiters(cleaned)
		fields, err = parseStrict(collapsed)
		if err != nil {
			n.logger.Debug("strict parse failed, attempting lenient recovery", "error", err)
			fields = parseLenient(collapsed)
			if len(fields) == 0 {
				return nil, common.NewParseError("no structured content found", raw, collapsed)
			}
			cleaned = collapsed
		} else {
			cleaned = collapsed
		}
	}

	result, err := coerce(fields)
	if err != nil {
		return nil, common.NewParseError(err.Error(), raw, cleaned)
	}
	return result, nil
}

// StripWrapping removes markdown code fences and surrounding commentary,
// keeping the outermost brace-delimited span when one exists.
func StripWrapping(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Trailing commentary after (or before) the JSON object.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return strings.TrimSpace(s)
}

// CollapseDelimiters collapses doubled structural braces ("{{", "}}")
// introduced by the service's templating into single ones.
func CollapseDelimiters(text string) string {
	s := strings.TrimSpace(text)
	for strings.HasPrefix(s, "{{") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "{"))
	}
	for strings.HasSuffix(s, "}}") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "}"))
	}
	return s
}

// parseStrict attempts a strict JSON object parse.
func parseStrict(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("strict parse: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("strict parse: empty object")
	}

	lowered := make(map[string]any, len(fields))
	for k, v := range fields {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return lowered, nil
}
