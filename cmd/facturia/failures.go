package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func failuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List permanently failed documents",
		Long: `Show documents that exhausted their retry budget and need manual
handling. Use --clear with a message ID and filename to make a
document eligible for ingestion again.`,
		RunE: runFailures,
	}

	cmd.Flags().StringSlice("clear", nil, "Clear failure history for message-id,filename")

	return cmd
}

func runFailures(cmd *cobra.Command, _ []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	target, _ := cmd.Flags().GetStringSlice("clear")
	if len(target) > 0 {
		if len(target) != 2 {
			return fmt.Errorf("--clear needs exactly message-id,filename, got %d values", len(target))
		}
		if err := store.ClearFailures(ctx, target[0], target[1]); err != nil {
			return fmt.Errorf("failed to clear failure history: %w", err)
		}
		slog.Info("Failure history cleared", "message_id", target[0], "filename", target[1])
		return nil
	}

	failures, err := store.PermanentFailures(ctx)
	if err != nil {
		return fmt.Errorf("failed to list failures: %w", err)
	}
	if len(failures) == 0 {
		slog.Info("No permanently failed documents 🎉")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MESSAGE ID\tFILE\tATTEMPTS\tLAST ATTEMPT\tLAST ERROR")
	for _, f := range failures {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			f.MessageID, f.Filename, f.Attempts,
			f.LastAttemptAt.Format("2006-01-02 15:04"), f.LastError)
	}
	return w.Flush()
}
