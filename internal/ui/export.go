package ui

import (
	"context"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/ics"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

func (a *App) exportCmd() *cobra.Command {
	var (
		startDate string
		endDate   string
		output    string
		toClip    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export items as an iCalendar file",
		Long: `Write items in a date range as iCalendar (.ics).

Without dates the export covers today and the following 90 days.
Recurring items keep their RRULE.`,
		Example: `  chronoflow export > schedule.ics
  chronoflow export --start=2025-01-01 --end=2025-03-31 -o q1.ics
  chronoflow export --clipboard`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}

			if startDate == "" {
				startDate = dateutil.Key(a.today())
			}
			if endDate == "" {
				s, err := dateutil.ParseDate(startDate)
				if err != nil {
					return err
				}
				endDate = dateutil.Key(s.AddDate(0, 0, 90))
			}
			dateRange, err := dateutil.NewDateRange(startDate, endDate)
			if err != nil {
				return err
			}
			if err := dateRange.Check(maxListDays); err != nil {
				return err
			}

			stored, err := a.store.ListItemsByDateRange(context.Background(), a.user, dateRange.Start, dateRange.End)
			if err != nil {
				return fmt.Errorf("listing items: %w", err)
			}
			items := make([]schedule.Item, len(stored))
			for i, it := range stored {
				items[i] = *it
			}

			body, err := ics.Export(items, a.config.Location())
			if err != nil {
				return err
			}

			switch {
			case toClip:
				if err := clipboard.WriteAll(body); err != nil {
					return fmt.Errorf("copying to clipboard: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Copied %d items to the clipboard\n", len(items))
			case output != "":
				if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d items to %s\n", len(items), output)
			default:
				fmt.Fprint(cmd.OutOrStdout(), body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&endDate, "end", "", "End date (YYYY-MM-DD, defaults to start + 90 days)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&toClip, "clipboard", false, "Copy to the system clipboard")
	cmd.MarkFlagsMutuallyExclusive("output", "clipboard")

	return cmd
}
