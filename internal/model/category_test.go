package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalCategory(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"canonical slug passes through", "groceries", "groceries", true},
		{"spanish alias resolves", "supermercado", "groceries", true},
		{"salary alias", "sueldo", "salary", true},
		{"utility alias", "factura_servicios", "utility_bill", true},
		{"mixed case and spaces", "Factura Servicios", "utility_bill", true},
		{"dashes become underscores", "transfer-received", "transfer_received", true},
		{"unknown value fails", "cripto", "cripto", false},
		{"empty fails", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalCategory(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsValidCategory(t *testing.T) {
	assert.True(t, IsValidCategory(KindIncome, "salary"))
	assert.True(t, IsValidCategory(KindExpense, "utility_bill"))

	// Kinds have disjoint catalogs.
	assert.False(t, IsValidCategory(KindExpense, "salary"))
	assert.False(t, IsValidCategory(KindIncome, "utility_bill"))
	assert.False(t, IsValidCategory(KindIncome, "unknown"))
}

func TestCatalogFor(t *testing.T) {
	require.NotEmpty(t, CatalogFor(KindIncome))
	require.NotEmpty(t, CatalogFor(KindExpense))
	assert.Nil(t, CatalogFor(TransactionKind("bogus")))

	// Every catalog ends in its catch-all bucket.
	assert.Contains(t, CatalogFor(KindIncome), FallbackCategory(KindIncome))
	assert.Contains(t, CatalogFor(KindExpense), FallbackCategory(KindExpense))
}
