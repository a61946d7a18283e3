// Package notify delivers end-of-cycle summaries. The log notifier is the
// default; the SMTP notifier sends a plain-text email when configured.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nmoreno/facturia/internal/service"
)

// LogNotifier writes the cycle summary to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, summary service.BatchSummary) error {
	n.logger.Info("ingestion cycle completed",
		"total", summary.Total(),
		"created", summary.Created,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"flagged_for_review", summary.FlaggedForReview,
		"deferred", summary.Deferred,
		"duration", summary.Duration.Round(0),
	)
	return nil
}

// FormatSummary renders the summary as the plain-text notification body.
func FormatSummary(summary service.BatchSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ingestion cycle of %s\n\n", summary.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Documents seen:      %d\n", summary.Total())
	fmt.Fprintf(&b, "Records created:     %d\n", summary.Created)
	fmt.Fprintf(&b, "Duplicates skipped:  %d\n", summary.Skipped)
	fmt.Fprintf(&b, "Failures:            %d\n", summary.Failed)
	fmt.Fprintf(&b, "Flagged for review:  %d\n", summary.FlaggedForReview)
	if summary.Deferred > 0 {
		fmt.Fprintf(&b, "Deferred:            %d\n", summary.Deferred)
	}
	fmt.Fprintf(&b, "Duration:            %s\n", summary.Duration.Round(0))

	if len(summary.Samples) > 0 {
		b.WriteString("\nNew records:\n")
		for _, t := range summary.Samples {
			flag := ""
			if t.RequiresReview {
				flag = " [review]"
			}
			fmt.Fprintf(&b, "  %s  %-8s %-18s %12s  %s%s\n",
				t.OccurredOn.Format("2006-01-02"), t.Kind, t.Category,
				t.Amount.StringFixed(2), t.Counterparty, flag)
		}
	}
	return b.String()
}
