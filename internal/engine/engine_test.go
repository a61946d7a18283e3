package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreno/facturia/internal/common"
	"github.com/nmoreno/facturia/internal/gateway"
	"github.com/nmoreno/facturia/internal/model"
	"github.com/nmoreno/facturia/internal/service"
	"github.com/nmoreno/facturia/internal/storage"
)

type stubClassifier struct {
	text  string
	err   error
	calls int
}

func (c *stubClassifier) Classify(_ context.Context, _ *model.Document) (gateway.RawResponse, error) {
	c.calls++
	if c.err != nil {
		return gateway.RawResponse{}, c.err
	}
	return gateway.RawResponse{Text: c.text}, nil
}

type stubSource struct {
	docs []model.Document
}

func (s *stubSource) FetchDocuments(_ context.Context) ([]model.Document, error) {
	return s.docs, nil
}

type recordingNotifier struct {
	summaries []service.BatchSummary
}

func (n *recordingNotifier) Notify(_ context.Context, summary service.BatchSummary) error {
	n.summaries = append(n.summaries, summary)
	return nil
}

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func pdfDoc(messageID string) model.Document {
	return model.Document{
		MessageID: messageID,
		Filename:  "ticket.pdf",
		Sender:    "facturacion@carrefour.com",
		Origin:    model.OriginPDF,
		Content:   []byte("pdf bytes for " + messageID),
	}
}

const goodResponse = `{
	"tipo": "egreso",
	"categoria": "supermercado",
	"monto": 15230.50,
	"fecha": "2025-03-14",
	"emisor_receptor": "Carrefour",
	"confianza": 0.95
}`

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("classified document becomes a committed record", func(t *testing.T) {
		store := newTestStorage(t)
		orch := New(store, &stubSource{}, &stubClassifier{text: goodResponse}, nil, Config{}, nil)

		doc := pdfDoc("msg-1")
		outcome, records, err := orch.Ingest(ctx, &doc)
		require.NoError(t, err)
		require.Equal(t, Created, outcome)
		require.Len(t, records, 1)

		assert.Equal(t, model.KindExpense, records[0].Kind)
		assert.Equal(t, "groceries", records[0].Category)
		assert.False(t, records[0].RequiresReview)

		persisted, err := store.Transactions(ctx, service.TransactionFilter{})
		require.NoError(t, err)
		assert.Len(t, persisted, 1)
	})

	t.Run("already ingested document is skipped without a remote call", func(t *testing.T) {
		store := newTestStorage(t)
		classifier := &stubClassifier{text: goodResponse}
		orch := New(store, &stubSource{}, classifier, nil, Config{}, nil)

		doc := pdfDoc("msg-1")
		outcome, _, err := orch.Ingest(ctx, &doc)
		require.NoError(t, err)
		require.Equal(t, Created, outcome)
		callsAfterFirst := classifier.calls

		// Same document on a later cycle.
		doc = pdfDoc("msg-1")
		outcome, _, err = orch.Ingest(ctx, &doc)
		require.NoError(t, err)
		assert.Equal(t, Skipped, outcome)
		assert.Equal(t, callsAfterFirst, classifier.calls)
	})

	t.Run("review threshold is configurable", func(t *testing.T) {
		store := newTestStorage(t)
		classifier := &stubClassifier{text: goodResponse}

		// The default threshold accepts a 0.95-confidence record.
		orch := New(store, &stubSource{}, classifier, nil, Config{}, nil)
		doc := pdfDoc("msg-1")
		_, records, err := orch.Ingest(ctx, &doc)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, records[0].RequiresReview)

		// A stricter configured threshold flags the same record.
		strict := New(store, &stubSource{}, classifier, nil, Config{ReviewThreshold: 0.99}, nil)
		doc = pdfDoc("msg-2")
		_, records, err = strict.Ingest(ctx, &doc)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, records[0].RequiresReview)
	})

	t.Run("unparseable response records a failure", func(t *testing.T) {
		store := newTestStorage(t)
		orch := New(store, &stubSource{}, &stubClassifier{text: "sorry, no idea"}, nil, Config{}, nil)

		doc := pdfDoc("msg-1")
		outcome, _, err := orch.Ingest(ctx, &doc)
		assert.Equal(t, Failed, outcome)
		assert.ErrorIs(t, err, common.ErrUnparseable)

		failure, err := store.FailureAttempts(ctx, "msg-1", "ticket.pdf")
		require.NoError(t, err)
		assert.Equal(t, 1, failure.Attempts)
		assert.Contains(t, failure.Diagnostic, "sorry")
	})

	t.Run("document is skipped once permanently failed", func(t *testing.T) {
		store := newTestStorage(t)
		classifier := &stubClassifier{text: "sorry, no idea"}
		orch := New(store, &stubSource{}, classifier, nil, Config{MaxAttempts: 2}, nil)

		doc := pdfDoc("msg-1")
		for i := 0; i < 2; i++ {
			outcome, _, _ := orch.Ingest(ctx, &doc)
			require.Equal(t, Failed, outcome)
		}

		callsBefore := classifier.calls
		outcome, _, err := orch.Ingest(ctx, &doc)
		require.NoError(t, err)
		assert.Equal(t, Skipped, outcome)
		assert.Equal(t, callsBefore, classifier.calls)
	})

	t.Run("transient condition defers without recording a failure", func(t *testing.T) {
		store := newTestStorage(t)
		orch := New(store, &stubSource{}, &stubClassifier{err: common.ErrRateLimited}, nil, Config{}, nil)

		doc := pdfDoc("msg-1")
		outcome, _, err := orch.Ingest(ctx, &doc)
		assert.Equal(t, Deferred, outcome)
		assert.ErrorIs(t, err, common.ErrRateLimited)

		_, err = store.FailureAttempts(ctx, "msg-1", "ticket.pdf")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("csv attachments bypass the classifier", func(t *testing.T) {
		store := newTestStorage(t)
		classifier := &stubClassifier{}
		orch := New(store, &stubSource{}, classifier, nil, Config{}, nil)

		doc := model.Document{
			MessageID: "msg-csv",
			Filename:  "movimientos.csv",
			Sender:    "resumen@banco.com",
			Origin:    model.OriginCSV,
			Content: []byte("fecha,monto,descripcion\n" +
				"2025-03-10,-4500,Compra Coto\n" +
				"2025-03-12,300000,Sueldo marzo\n"),
		}

		outcome, records, err := orch.Ingest(ctx, &doc)
		require.NoError(t, err)
		require.Equal(t, Created, outcome)
		require.Len(t, records, 2)

		assert.Equal(t, 0, classifier.calls)
		assert.Equal(t, "groceries", records[0].Category)
		assert.Equal(t, "salary", records[1].Category)
		assert.False(t, records[0].ProcessedByAI)
	})

	t.Run("unreadable csv records a failure", func(t *testing.T) {
		store := newTestStorage(t)
		orch := New(store, &stubSource{}, &stubClassifier{}, nil, Config{}, nil)

		doc := model.Document{
			MessageID: "msg-bad",
			Filename:  "roto.csv",
			Origin:    model.OriginCSV,
			Content:   []byte("not,a\nrecognizable,file\n"),
		}

		outcome, _, err := orch.Ingest(ctx, &doc)
		assert.Equal(t, Failed, outcome)
		assert.ErrorIs(t, err, common.ErrUnparseable)
	})
}

func TestRunBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("counters and notification", func(t *testing.T) {
		store := newTestStorage(t)
		notifier := &recordingNotifier{}
		source := &stubSource{docs: []model.Document{pdfDoc("msg-1"), pdfDoc("msg-2")}}
		orch := New(store, source, &stubClassifier{text: goodResponse}, notifier, Config{}, nil)

		summary, err := orch.RunCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.Created)
		assert.Equal(t, 0, summary.Failed)
		assert.Len(t, summary.Samples, 2)
		require.Len(t, notifier.summaries, 1)
		assert.Equal(t, 2, notifier.summaries[0].Total())
	})

	t.Run("second cycle skips everything", func(t *testing.T) {
		store := newTestStorage(t)
		source := &stubSource{docs: []model.Document{pdfDoc("msg-1")}}
		orch := New(store, source, &stubClassifier{text: goodResponse}, nil, Config{}, nil)

		_, err := orch.RunCycle(ctx)
		require.NoError(t, err)

		summary, err := orch.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Created)
		assert.Equal(t, 1, summary.Skipped)
	})

	t.Run("transient error defers the remainder of the batch", func(t *testing.T) {
		store := newTestStorage(t)
		classifier := &stubClassifier{err: common.ErrCircuitOpen}
		source := &stubSource{docs: []model.Document{
			pdfDoc("msg-1"), pdfDoc("msg-2"), pdfDoc("msg-3"),
		}}
		orch := New(store, source, classifier, nil, Config{}, nil)

		summary, err := orch.RunCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, summary.Deferred)
		assert.Equal(t, 0, summary.Failed)
		assert.Equal(t, 1, classifier.calls, "only the first document should reach the classifier")
	})

	t.Run("progress callback fires once per document", func(t *testing.T) {
		store := newTestStorage(t)
		docs := []model.Document{pdfDoc("msg-1"), pdfDoc("msg-2")}
		orch := New(store, &stubSource{}, &stubClassifier{text: goodResponse}, nil, Config{}, nil)

		ticks := 0
		_, err := orch.RunBatch(ctx, docs, func() { ticks++ })
		require.NoError(t, err)
		assert.Equal(t, 2, ticks)
	})
}
