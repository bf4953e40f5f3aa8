package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

func (a *App) addCmd() *cobra.Command {
	var (
		itemType    string
		date        string
		start       string
		end         string
		recurrence  string
		description string
		unscheduled bool
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add an event or task",
		Long: `Add an event or task to your schedule.

Dates accept YYYY-MM-DD, "today", "tomorrow", weekday names and
"next-<weekday>". Without --date the item goes on today; use
--unscheduled for a task with no date.`,
		Example: `  chronoflow add "Dentist" --type=event --date=friday --start=14:00 --end=15:00
  chronoflow add "Standup" --type=event --start=09:00 --end=09:15 --recur="FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"
  chronoflow add "Read a book" --unscheduled`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}

			day := ""
			if !unscheduled {
				d, err := dateutil.ParseRelativeDate(date, a.today())
				if err != nil {
					return fmt.Errorf("invalid date: %w", err)
				}
				day = dateutil.Key(d)
			}

			it, err := schedule.New(a.user, schedule.ItemType(itemType), strings.Join(args, " "), day, start, end)
			if err != nil {
				return err
			}
			if err := recur.Validate(recurrence); err != nil {
				return err
			}
			it.Recurrence = strings.TrimSpace(recurrence)
			it.Description = description
			it.Source = schedule.SourceCLI

			if err := a.store.CreateItem(context.Background(), it); err != nil {
				return fmt.Errorf("creating item: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", formatOK("Created"), it.Type, it.ID)
			PrintItemRow(cmd.OutOrStdout(), it, titleWidth())
			return nil
		},
	}

	cmd.Flags().StringVar(&itemType, "type", string(schedule.TypeTask), "Item type: event or task")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD or relative, default: today)")
	cmd.Flags().StringVar(&start, "start", "", "Start time (HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "End time (HH:MM), before --start to run past midnight")
	cmd.Flags().StringVar(&recurrence, "recur", "", "Recurrence rule, e.g. FREQ=WEEKLY;BYDAY=MO")
	cmd.Flags().StringVar(&description, "desc", "", "Longer description")
	cmd.Flags().BoolVar(&unscheduled, "unscheduled", false, "Create a task without a date")
	cmd.MarkFlagsMutuallyExclusive("unscheduled", "date")

	return cmd
}
