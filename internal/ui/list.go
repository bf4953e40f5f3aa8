package ui

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// maxListDays bounds one list query.
const maxListDays = 366

func (a *App) listCmd() *cobra.Command {
	var (
		startDate   string
		endDate     string
		unscheduled bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in a date range",
		Long: `List stored items within a date range.

If no dates are specified, lists today's items.
If only --start is specified, lists items for that single day.
If both --start and --end are specified, lists items in that range (inclusive).
Recurring items are listed once, on the date they start.`,
		Example: `  chronoflow list
  chronoflow list --start=2025-01-15
  chronoflow list --start=2025-01-15 --end=2025-01-20
  chronoflow list --unscheduled`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := context.Background()

			if unscheduled {
				items, err := a.store.ListUnscheduled(ctx, a.user)
				if err != nil {
					return fmt.Errorf("listing items: %w", err)
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "No unscheduled tasks.")
					return nil
				}
				fmt.Fprintln(out, formatHeader("=== Unscheduled ==="))
				printItems(cmd, items)
				return nil
			}

			if startDate == "" {
				startDate = dateutil.Key(a.today())
			}
			dateRange, err := dateutil.NewDateRange(startDate, endDate)
			if err != nil {
				return err
			}
			if err := dateRange.Check(maxListDays); err != nil {
				return err
			}

			items, err := a.store.ListItemsByDateRange(ctx, a.user, dateRange.Start, dateRange.End)
			if err != nil {
				return fmt.Errorf("listing items: %w", err)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No items found in the specified date range.")
				return nil
			}

			// Print items grouped by date
			var currentDate string
			for _, it := range items {
				if it.Date != currentDate {
					if currentDate != "" {
						fmt.Fprintln(out)
					}
					fmt.Fprintln(out, formatHeader(fmt.Sprintf("=== %s ===", it.Date)))
					currentDate = it.Date
				}
				PrintItemRow(out, it, titleWidth())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&endDate, "end", "", "End date (YYYY-MM-DD, defaults to start date)")
	cmd.Flags().BoolVar(&unscheduled, "unscheduled", false, "List tasks without a date")

	return cmd
}

func printItems(cmd *cobra.Command, items []*schedule.Item) {
	for _, it := range items {
		PrintItemRow(cmd.OutOrStdout(), it, titleWidth())
	}
}
