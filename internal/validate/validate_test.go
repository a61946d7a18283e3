package validate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreno/facturia/internal/model"
)

func validClassification() *model.Classification {
	return &model.Classification{
		Kind:         model.KindExpense,
		Category:     "groceries",
		Amount:       decimal.RequireFromString("150.50"),
		OccurredOn:   time.Now().AddDate(0, 0, -1),
		Counterparty: "Carrefour",
		Description:  "Compra semanal",
		Confidence:   0.95,
	}
}

func testDocument() *model.Document {
	return &model.Document{
		MessageID: "msg-1",
		Filename:  "ticket.pdf",
		Sender:    "juan.perez@empresa.com",
		Origin:    model.OriginPDF,
		Content:   []byte("pdf bytes"),
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	v := New(CatalogChecker{}, DefaultReviewThreshold, nil)

	t.Run("clean record passes without review", func(t *testing.T) {
		record, review, err := v.Validate(ctx, validClassification(), testDocument())
		require.NoError(t, err)

		assert.False(t, review)
		assert.False(t, record.RequiresReview)
		assert.NotEmpty(t, record.ID)
		assert.Equal(t, "Carrefour", record.Counterparty)
		assert.True(t, record.ProcessedByAI)
		assert.Equal(t, "ticket.pdf", record.SourceFile)
	})

	t.Run("non-positive amount flags review, never errors", func(t *testing.T) {
		cls := validClassification()
		cls.Amount = decimal.Zero

		record, review, err := v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.True(t, review)
		assert.True(t, record.RequiresReview)

		cls.Amount = decimal.RequireFromString("-10")
		_, review, err = v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.True(t, review)
	})

	t.Run("category outside catalog flags review", func(t *testing.T) {
		cls := validClassification()
		cls.Category = "cripto"

		_, review, err := v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.True(t, review)
	})

	t.Run("category from the wrong kind flags review", func(t *testing.T) {
		cls := validClassification()
		cls.Category = "salary"

		_, review, err := v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.True(t, review)
	})

	t.Run("future date flags review", func(t *testing.T) {
		cls := validClassification()
		cls.OccurredOn = time.Now().AddDate(0, 0, 7)

		_, review, err := v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.True(t, review)
	})

	t.Run("tomorrow is within tolerance", func(t *testing.T) {
		cls := validClassification()
		cls.OccurredOn = time.Now().Add(12 * time.Hour)

		_, review, err := v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.False(t, review)
	})

	t.Run("low confidence flags review", func(t *testing.T) {
		cls := validClassification()
		cls.Confidence = 0.60

		_, review, err := v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.True(t, review)
	})

	t.Run("implausible counterparty replaced from sender", func(t *testing.T) {
		cls := validClassification()
		cls.Counterparty = ""

		record, _, err := v.Validate(ctx, cls, testDocument())
		require.NoError(t, err)
		assert.Equal(t, "Juan Perez", record.Counterparty)
	})

	t.Run("csv records are not marked ai-processed", func(t *testing.T) {
		doc := testDocument()
		doc.Origin = model.OriginCSV
		cls := validClassification()
		cls.Confidence = 1.0

		record, _, err := v.Validate(ctx, cls, doc)
		require.NoError(t, err)
		assert.False(t, record.ProcessedByAI)
	})
}

func TestResolveCounterparty(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		want   string
	}{
		{"dotted local part", "juan.perez@empresa.com", "Juan Perez"},
		{"underscore separator", "maria_garcia@mail.com", "Maria Garcia"},
		{"role account uses domain", "info@empresa.com", "Empresa"},
		{"noreply uses domain", "no-reply@banco.com.ar", "Banco"},
		{"display name form", "Juan Perez <juan.perez@empresa.com>", "Juan Perez"},
		{"single token", "carlos@mail.com", "Carlos"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCounterparty(tt.sender))
		})
	}
}

func TestImplausible(t *testing.T) {
	assert.True(t, Implausible(""))
	assert.True(t, Implausible("   "))
	assert.True(t, Implausible("123456"))
	assert.False(t, Implausible("Carrefour"))
	assert.False(t, Implausible("3M"))
}
