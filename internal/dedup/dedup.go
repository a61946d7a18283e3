// Package dedup assigns stable identities to incoming documents and rejects
// ones the pipeline has already ingested.
package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nmoreno/facturia/internal/model"
	"github.com/nmoreno/facturia/internal/service"
)

// Decision is the outcome of an admission check.
type Decision int

const (
	// Accepted means the document has not been seen before.
	Accepted Decision = iota
	// Duplicate means the document (or its content) was already ingested.
	Duplicate
)

// Deduplicator checks incoming documents against the durable key store.
type Deduplicator struct {
	storage service.Storage
	logger  *slog.Logger
}

// New creates a Deduplicator backed by the given store.
func New(storage service.Storage, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{storage: storage, logger: logger}
}

// Admit computes the document's key and tests membership against the store.
// It returns Duplicate without side effects when either the
// (messageID, filename) pair or the content fingerprint is already committed.
// Admit never records the key itself; the orchestrator commits it only after
// the document has been fully ingested, so a document that fails mid-pipeline
// stays eligible for retry on the next cycle.
func (d *Deduplicator) Admit(ctx context.Context, doc *model.Document) (Decision, model.DocumentKey, error) {
	key := doc.Key()

	seen, err := d.storage.DocumentProcessed(ctx, key)
	if err != nil {
		return Duplicate, key, fmt.Errorf("failed to check processed documents: %w", err)
	}
	if seen {
		d.logger.Debug("duplicate document rejected",
			"message_id", key.MessageID,
			"filename", key.Filename,
			"fingerprint", key.Fingerprint[:8])
		return Duplicate, key, nil
	}

	return Accepted, key, nil
}
