package csvimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRows(t *testing.T) {
	t.Run("comma delimited with spanish headers", func(t *testing.T) {
		content := []byte("fecha,monto,descripcion,tipo\n" +
			"2025-03-14,1500.50,Compra supermercado,egreso\n" +
			"2025-03-15,300000,Sueldo marzo,ingreso\n")

		rows, err := ReadRows(content)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "2025-03-14", rows[0].Date)
		assert.Equal(t, "1500.50", rows[0].Amount)
		assert.Equal(t, "Compra supermercado", rows[0].Description)
		assert.Equal(t, "egreso", rows[0].Kind)
	})

	t.Run("semicolon delimited with synonym headers", func(t *testing.T) {
		content := []byte("Fecha;Importe;Concepto;Proveedor\n" +
			"14/03/2025;-1500,50;Factura de luz;Edenor\n")

		rows, err := ReadRows(content)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		assert.Equal(t, "-1500,50", rows[0].Amount)
		assert.Equal(t, "Factura de luz", rows[0].Description)
		assert.Equal(t, "Edenor", rows[0].Counterparty)
	})

	t.Run("unknown columns are ignored", func(t *testing.T) {
		content := []byte("date,amount,saldo\n2025-03-14,100,99000\n")

		rows, err := ReadRows(content)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "100", rows[0].Amount)
	})

	t.Run("rows without amount are skipped", func(t *testing.T) {
		content := []byte("fecha,monto\n2025-03-14,100\n2025-03-15,\n")

		rows, err := ReadRows(content)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("latin-1 content is re-decoded", func(t *testing.T) {
		// "descripción" with 0xF3 for ó, as ISO 8859-1 exports ship it.
		content := []byte("fecha,monto,descripcion\n2025-03-14,100,Caf\xe9 con leche\n")

		rows, err := ReadRows(content)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Café con leche", rows[0].Description)
	})

	t.Run("no recognizable columns fails", func(t *testing.T) {
		_, err := ReadRows([]byte("foo,bar\n1,2\n"))
		assert.Error(t, err)
	})

	t.Run("empty content fails", func(t *testing.T) {
		_, err := ReadRows(nil)
		assert.Error(t, err)
	})
}
