package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreno/facturia/internal/model"
	"github.com/nmoreno/facturia/internal/service"
)

func sampleSummary() service.BatchSummary {
	return service.BatchSummary{
		StartedAt:        time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Duration:         42 * time.Second,
		Created:          2,
		Skipped:          1,
		Failed:           1,
		FlaggedForReview: 1,
		Samples: []model.Transaction{
			{
				Kind:           model.KindExpense,
				Category:       "groceries",
				Amount:         decimal.RequireFromString("15230.50"),
				OccurredOn:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
				Counterparty:   "Carrefour",
				RequiresReview: true,
			},
		},
	}
}

func TestFormatSummary(t *testing.T) {
	body := FormatSummary(sampleSummary())

	assert.Contains(t, body, "2025-03-14 09:30")
	assert.Contains(t, body, "Records created:     2")
	assert.Contains(t, body, "Failures:            1")
	assert.Contains(t, body, "Carrefour")
	assert.Contains(t, body, "15230.50")
	assert.Contains(t, body, "[review]")
	assert.NotContains(t, body, "Deferred")
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NoError(t, n.Notify(context.Background(), sampleSummary()))
}

func TestSMTPNotifier(t *testing.T) {
	cfg := SMTPConfig{
		Host: "mail.example.com",
		Port: 587,
		From: "facturia@example.com",
		To:   []string{"owner@example.com"},
	}

	t.Run("sends a well-formed message", func(t *testing.T) {
		n := NewSMTPNotifier(cfg, nil)

		var gotAddr, gotFrom string
		var gotTo []string
		var gotMsg []byte
		n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		}

		require.NoError(t, n.Notify(context.Background(), sampleSummary()))

		assert.Equal(t, "mail.example.com:587", gotAddr)
		assert.Equal(t, "facturia@example.com", gotFrom)
		assert.Equal(t, []string{"owner@example.com"}, gotTo)
		assert.Contains(t, string(gotMsg), "Subject: Ingestion summary: 2 created, 1 failed")
		assert.Contains(t, string(gotMsg), "Carrefour")
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		n := NewSMTPNotifier(cfg, nil)
		n.send = func(_ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
			return errors.New("connection refused")
		}

		assert.NoError(t, n.Notify(context.Background(), sampleSummary()))
	})
}

func TestSMTPConfigConfigured(t *testing.T) {
	assert.False(t, SMTPConfig{}.Configured())
	assert.False(t, SMTPConfig{Host: "h", From: "f"}.Configured())
	assert.True(t, SMTPConfig{Host: "h", From: "f", To: []string{"t"}}.Configured())
}
