// Package engine orchestrates the ingestion pipeline: admission, remote
// classification, normalization, validation, and the atomic commit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nmoreno/facturia/internal/common"
	"github.com/nmoreno/facturia/internal/csvimport"
	"github.com/nmoreno/facturia/internal/dedup"
	"github.com/nmoreno/facturia/internal/gateway"
	"github.com/nmoreno/facturia/internal/model"
	"github.com/nmoreno/facturia/internal/normalize"
	"github.com/nmoreno/facturia/internal/service"
	"github.com/nmoreno/facturia/internal/validate"
)

// DefaultMaxAttempts is how many cycles a failing document is retried
// before it is marked permanently failed.
const DefaultMaxAttempts = 3

// sampleLimit caps the records attached to a cycle notification.
const sampleLimit = 10

// Classifier is the remote-service surface the orchestrator depends on.
type Classifier interface {
	Classify(ctx context.Context, doc *model.Document) (gateway.RawResponse, error)
}

// Outcome is the terminal state of one document within a cycle.
type Outcome int

const (
	// Created means records were committed for the document.
	Created Outcome = iota
	// Skipped means the document was a duplicate or permanently failed.
	Skipped
	// Failed means ingestion failed and a failure was recorded.
	Failed
	// Deferred means the document was not attempted; the batch stopped on a
	// transient condition and the document stays eligible next cycle.
	Deferred
)

// Config tunes the orchestrator.
type Config struct {
	// MaxAttempts bounds per-document retries across cycles.
	MaxAttempts int
	// ReviewThreshold is the confidence cutoff below which records are
	// flagged for manual review. Zero means the validator default.
	ReviewThreshold float64
}

// Orchestrator drives documents through the pipeline stages in order.
type Orchestrator struct {
	dedup      *dedup.Deduplicator
	classifier Classifier
	normalizer *normalize.Normalizer
	validator  *validate.Validator
	storage    service.Storage
	source     service.DocumentSource
	notifier   service.Notifier
	logger     *slog.Logger
	cfg        Config
}

// New wires the pipeline stages into an orchestrator.
func New(
	storage service.Storage,
	source service.DocumentSource,
	classifier Classifier,
	notifier service.Notifier,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Orchestrator{
		dedup:      dedup.New(storage, logger),
		classifier: classifier,
		normalizer: normalize.New(logger),
		validator:  validate.New(storage, cfg.ReviewThreshold, logger),
		storage:    storage,
		source:     source,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// RunCycle fetches one batch from the source and ingests it.
func (o *Orchestrator) RunCycle(ctx context.Context) (service.BatchSummary, error) {
	docs, err := o.FetchDocuments(ctx)
	if err != nil {
		return service.BatchSummary{StartedAt: time.Now()}, fmt.Errorf("fetching documents: %w", err)
	}
	return o.RunBatch(ctx, docs, nil)
}

// FetchDocuments pulls the pending batch from the configured source.
func (o *Orchestrator) FetchDocuments(ctx context.Context) ([]model.Document, error) {
	return o.source.FetchDocuments(ctx)
}

// RunBatch ingests the given documents sequentially, invoking progress after
// each one when non-nil. A transient condition (rate limit exhausted,
// circuit open) stops the batch; the remaining documents are deferred to the
// next cycle. The summary is always delivered to the notifier, even for an
// empty batch.
func (o *Orchestrator) RunBatch(ctx context.Context, docs []model.Document, progress func()) (service.BatchSummary, error) {
	start := time.Now()
	summary := service.BatchSummary{StartedAt: start}
	o.logger.Info("ingestion cycle started", "documents", len(docs))

	deferring := false
	for i := range docs {
		if err := ctx.Err(); err != nil {
			summary.Deferred += len(docs) - i
			summary.Duration = time.Since(start)
			return summary, err
		}
		if deferring {
			summary.Deferred++
			if progress != nil {
				progress()
			}
			continue
		}

		outcome, records, err := o.Ingest(ctx, &docs[i])
		switch outcome {
		case Created:
			summary.Created += len(records)
			for _, r := range records {
				if r.RequiresReview {
					summary.FlaggedForReview++
				}
				if len(summary.Samples) < sampleLimit {
					summary.Samples = append(summary.Samples, r)
				}
			}
		case Skipped:
			summary.Skipped++
		case Failed:
			summary.Failed++
		case Deferred:
			summary.Deferred++
			deferring = true
			o.logger.Warn("deferring remainder of batch",
				"reason", err,
				"remaining", len(docs)-i-1)
		}
		if progress != nil {
			progress()
		}
	}

	summary.Duration = time.Since(start)
	if o.notifier != nil {
		if err := o.notifier.Notify(ctx, summary); err != nil {
			o.logger.Warn("cycle notification failed", "error", err)
		}
	}
	return summary, nil
}

// Ingest runs one document through the full pipeline. The returned records
// are the committed transactions when the outcome is Created.
func (o *Orchestrator) Ingest(ctx context.Context, doc *model.Document) (Outcome, []model.Transaction, error) {
	decision, key, err := o.dedup.Admit(ctx, doc)
	if err != nil {
		return Failed, nil, err
	}
	if decision == dedup.Duplicate {
		return Skipped, nil, nil
	}

	if skip, err := o.permanentlyFailed(ctx, key); err != nil {
		return Failed, nil, err
	} else if skip {
		o.logger.Debug("skipping permanently failed document",
			"message_id", key.MessageID, "filename", key.Filename)
		return Skipped, nil, nil
	}

	classifications, err := o.classify(ctx, doc)
	if err != nil {
		if common.IsTransient(err) {
			return Deferred, nil, err
		}
		return o.recordFailure(ctx, key, err)
	}

	var records []model.Transaction
	for i := range classifications {
		record, _, err := o.validator.Validate(ctx, &classifications[i], doc)
		if err != nil {
			return Failed, nil, fmt.Errorf("validating %s: %w", key, err)
		}
		records = append(records, *record)
	}

	if err := o.storage.CommitDocument(ctx, key, records); err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return Skipped, nil, nil
		}
		return Failed, nil, fmt.Errorf("committing %s: %w", key, err)
	}

	o.logger.Info("document ingested",
		"message_id", key.MessageID,
		"filename", key.Filename,
		"records", len(records))
	return Created, records, nil
}

// classify produces the typed classification results for a document. CSV
// attachments are handled locally; everything else goes through the remote
// service and the normalizer.
func (o *Orchestrator) classify(ctx context.Context, doc *model.Document) ([]model.Classification, error) {
	if doc.Origin == model.OriginCSV {
		return o.classifyCSV(doc)
	}

	resp, err := o.classifier.Classify(ctx, doc)
	if err != nil {
		return nil, err
	}

	cls, err := o.normalizer.Normalize(resp.Text)
	if err != nil {
		return nil, err
	}
	return []model.Classification{*cls}, nil
}

func (o *Orchestrator) classifyCSV(doc *model.Document) ([]model.Classification, error) {
	rows, err := csvimport.ReadRows(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnparseable, err)
	}

	results, rowErrs := csvimport.Transform(rows)
	for _, rerr := range rowErrs {
		o.logger.Warn("csv row skipped", "filename", doc.Filename, "error", rerr)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no usable rows in %s", common.ErrUnparseable, doc.Filename)
	}
	return results, nil
}

func (o *Orchestrator) permanentlyFailed(ctx context.Context, key model.DocumentKey) (bool, error) {
	failure, err := o.storage.FailureAttempts(ctx, key.MessageID, key.Filename)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking failure history for %s: %w", key, err)
	}
	return failure.Permanent, nil
}

// recordFailure books a failed attempt and reports whether the cap was hit.
// The normalizer's diagnostic payload is preserved for manual inspection.
func (o *Orchestrator) recordFailure(ctx context.Context, key model.DocumentKey, cause error) (Outcome, []model.Transaction, error) {
	diagnostic := ""
	var parseErr *common.ParseError
	if errors.As(cause, &parseErr) {
		diagnostic = parseErr.Raw
	}

	permanent, err := o.storage.RecordFailure(ctx, key, cause.Error(), diagnostic, o.cfg.MaxAttempts)
	if err != nil {
		return Failed, nil, fmt.Errorf("recording failure for %s: %w", key, err)
	}

	if permanent {
		o.logger.Error("document permanently failed",
			"message_id", key.MessageID,
			"filename", key.Filename,
			"attempts", o.cfg.MaxAttempts,
			"error", cause)
	} else {
		o.logger.Warn("document ingestion failed",
			"message_id", key.MessageID,
			"filename", key.Filename,
			"error", cause)
	}
	return Failed, nil, cause
}
