package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the classification catalog",
		Long: `Show every category a record can be classified into, grouped by
transaction kind. The catalog is fixed; the classifier must land
on one of these or the record gets flagged for review.`,
		RunE: runCategories,
	}
}

func runCategories(cmd *cobra.Command, _ []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	categories, err := store.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tCATEGORY\tDESCRIPTION")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Kind, c.Name, c.Description)
	}
	return w.Flush()
}
