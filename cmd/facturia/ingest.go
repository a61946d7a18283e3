package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run a single ingestion cycle",
		Long: `Fetch all pending documents, classify them, and persist the
resulting transaction records. Exits when the batch is done.`,
		RunE: runIngest,
	}

	cmd.Flags().StringP("dir", "d", "", "Directory to read pending documents from")
	_ = viper.BindPFlag("source.dir", cmd.Flags().Lookup("dir"))

	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	orch, err := buildOrchestrator(store)
	if err != nil {
		return err
	}

	docs, err := orch.FetchDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch documents: %w", err)
	}
	if len(docs) == 0 {
		slog.Info("Nothing to ingest")
		return nil
	}

	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Ingesting documents..."),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	summary, err := orch.RunBatch(ctx, docs, func() {
		if barErr := bar.Add(1); barErr != nil {
			slog.Warn("Failed to update progress bar", "error", barErr)
		}
	})
	if err != nil {
		return err
	}

	slog.Info("✅ Ingestion cycle completed",
		"created", summary.Created,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"flagged_for_review", summary.FlaggedForReview,
		"deferred", summary.Deferred,
		"duration", summary.Duration.Round(0))

	if summary.Deferred > 0 {
		slog.Warn("Some documents were deferred; run ingest again later",
			"deferred", summary.Deferred)
	}
	return nil
}
