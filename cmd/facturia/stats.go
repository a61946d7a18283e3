package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nmoreno/facturia/internal/model"
	"github.com/nmoreno/facturia/internal/storage"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "View period totals and top categories",
		Long: `Summarize persisted records over a date range: income and expense
totals, balance, records pending review, and the biggest categories
on each side.`,
		RunE: runStats,
	}

	cmd.Flags().IntP("year", "y", time.Now().Year(), "Year to analyze")
	cmd.Flags().StringP("month", "m", "", "Specific month to analyze (format: 2024-01)")
	cmd.Flags().Int("top", 5, "Number of top categories per kind")

	_ = viper.BindPFlag("stats.year", cmd.Flags().Lookup("year"))
	_ = viper.BindPFlag("stats.month", cmd.Flags().Lookup("month"))
	_ = viper.BindPFlag("stats.top", cmd.Flags().Lookup("top"))

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	start, end, label, err := statsPeriod(viper.GetInt("stats.year"), viper.GetString("stats.month"))
	if err != nil {
		return err
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	summary, err := store.PeriodSummary(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to summarize period: %w", err)
	}

	fmt.Printf("📈 %s\n\n", label)
	fmt.Printf("Income:          %12s  (%d records)\n", summary.TotalIncome.StringFixed(2), summary.IncomeCount)
	fmt.Printf("Expenses:        %12s  (%d records)\n", summary.TotalExpense.StringFixed(2), summary.ExpenseCount)
	fmt.Printf("Balance:         %12s\n", summary.Balance.StringFixed(2))
	if summary.PendingReview > 0 {
		fmt.Printf("Pending review:  %12d\n", summary.PendingReview)
	}

	top := viper.GetInt("stats.top")
	if err := printTopCategories(cmd, store, model.KindExpense, "Top expense categories", top); err != nil {
		return err
	}
	return printTopCategories(cmd, store, model.KindIncome, "Top income categories", top)
}

func printTopCategories(cmd *cobra.Command, store *storage.SQLiteStorage, kind model.TransactionKind, title string, limit int) error {
	totals, err := store.TopCategories(cmd.Context(), kind, limit)
	if err != nil {
		return fmt.Errorf("failed to rank categories: %w", err)
	}
	if len(totals) == 0 {
		return nil
	}

	fmt.Printf("\n%s:\n", title)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, t := range totals {
		fmt.Fprintf(w, "  %s\t%12s\t%d records\n", t.Category, t.Total.StringFixed(2), t.Count)
	}
	return w.Flush()
}

// statsPeriod resolves the flags into a half-open [start, end) range.
func statsPeriod(year int, month string) (time.Time, time.Time, string, error) {
	if month != "" {
		start, err := time.Parse("2006-01", month)
		if err != nil {
			return time.Time{}, time.Time{}, "", fmt.Errorf("invalid month %q (want 2024-01): %w", month, err)
		}
		return start, start.AddDate(0, 1, 0), month, nil
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0), fmt.Sprintf("%d", year), nil
}
