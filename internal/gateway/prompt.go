package gateway

import (
	"fmt"
	"strings"

	"github.com/nmoreno/facturia/internal/model"
)

// Instructions builds the fixed instruction payload sent with every document.
// The response is requested as bare JSON; the normalizer still has to repair
// fenced, doubled-brace, or annotated variants of it.
func Instructions(doc *model.Document) string {
	var b strings.Builder

	if doc.Filename != "" || doc.Subject != "" {
		fmt.Fprintf(&b, "Additional context: file %q, email subject %q.\n\n", doc.Filename, doc.Subject)
	}

	b.WriteString(`Analyze this financial document (receipt or invoice) and extract its data.

Respond with EXACTLY one JSON object in this shape, and nothing else:

{
  "tipo": "ingreso" or "egreso",
  "categoria": "one of the categories listed below",
  "fecha": "YYYY-MM-DD",
  "monto": 1500.50,
  "emisor_receptor": "issuing company or person",
  "descripcion": "short description of the concept",
  "numero_comprobante": "document reference number, if present",
  "confianza": 0.95
}

Income categories ("tipo": "ingreso"):
`)
	for _, c := range model.IncomeCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nExpense categories (\"tipo\": \"egreso\"):\n")
	for _, c := range model.ExpenseCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString(`
Rules:
- Use null for any field you cannot determine.
- "monto" is a bare number, no currency symbols.
- "fecha" is YYYY-MM-DD.
- "confianza" is your certainty in [0, 1].
- Respond only with the JSON object, no explanations.`)

	return b.String()
}
