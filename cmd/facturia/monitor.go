package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run ingestion cycles continuously",
		Long: `Watch the pending directory and ingest new documents on a fixed
interval until interrupted. Cycles never overlap; a tick that
arrives while a cycle is running is skipped.`,
		RunE: runMonitor,
	}

	cmd.Flags().DurationP("interval", "i", 0, "Time between cycles (default 5m)")
	_ = viper.BindPFlag("ingest.interval", cmd.Flags().Lookup("interval"))

	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
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

	slog.Info("👀 Watching for new documents...", "interval", cycleInterval())
	return orch.Monitor(ctx, cycleInterval())
}
