// Package csvimport turns CSV attachments into classification results
// without spending classification-service quota.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/charmap"
)

// Row is one transaction row after header canonicalization.
type Row struct {
	Date         string `csv:"fecha,omitempty"`
	Amount       string `csv:"monto,omitempty"`
	Description  string `csv:"descripcion,omitempty"`
	Kind         string `csv:"tipo,omitempty"`
	Category     string `csv:"categoria,omitempty"`
	Counterparty string `csv:"emisor,omitempty"`
	Reference    string `csv:"comprobante,omitempty"`
}

// headerSynonyms maps the column names seen in bank and accounting exports
// to the canonical names Row decodes from.
var headerSynonyms = map[string]string{
	"fecha": "fecha", "date": "fecha", "fecha_transaccion": "fecha",
	"transaction_date": "fecha", "dia": "fecha", "día": "fecha",

	"monto": "monto", "amount": "monto", "importe": "monto",
	"total": "monto", "valor": "monto", "precio": "monto",

	"descripcion": "descripcion", "description": "descripcion",
	"concepto": "descripcion", "detalle": "descripcion", "detail": "descripcion",

	"tipo": "tipo", "type": "tipo",

	"categoria": "categoria", "category": "categoria", "rubro": "categoria",

	"emisor": "emisor", "receptor": "emisor", "proveedor": "emisor",
	"supplier": "emisor", "vendedor": "emisor", "cliente": "emisor",

	"comprobante": "comprobante", "numero_comprobante": "comprobante",
	"reference": "comprobante",
}

var delimiters = []rune{',', ';', '\t', '|'}

// ReadRows parses CSV content, detecting the delimiter and tolerating
// Latin-1 exports. Columns that don't map to a known synonym are ignored.
func ReadRows(content []byte) ([]Row, error) {
	content = ensureUTF8(content)

	var lastErr error
	for _, delim := range delimiters {
		rows, err := readWithDelimiter(content, delim)
		if err != nil {
			lastErr = err
			continue
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("unable to parse CSV: %w", lastErr)
	}
	return nil, fmt.Errorf("no transaction rows found in CSV")
}

func readWithDelimiter(content []byte, delim rune) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rawHeader, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(rawHeader) < 2 {
		return nil, fmt.Errorf("header has %d column(s) with delimiter %q", len(rawHeader), delim)
	}

	header := make([]string, len(rawHeader))
	known := 0
	for i, col := range rawHeader {
		name := strings.ToLower(strings.TrimSpace(strings.Trim(col, "\ufeff")))
		if canonical, ok := headerSynonyms[name]; ok {
			header[i] = canonical
			known++
		} else {
			// csvutil ignores columns absent from the struct tags.
			header[i] = name
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("no recognizable columns with delimiter %q", delim)
	}

	dec, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	var rows []Row
	for {
		var row Row
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip malformed rows but keep reading.
			continue
		}
		if strings.TrimSpace(row.Amount) == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ensureUTF8 re-decodes Latin-1 content; bank exports in es-AR locales
// frequently ship ISO 8859-1.
func ensureUTF8(content []byte) []byte {
	if utf8.Valid(content) {
		return content
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return content
	}
	return decoded
}
