package ui

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

func (a *App) doneCmd() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <item-id>",
		Short: "Mark a task as done",
		Long: `Mark a task as completed, or as not done with --undo.

Example:
  chronoflow done 0b6f7c1e-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}

			ctx := context.Background()
			if err := a.store.SetCompleted(ctx, a.user, args[0], !undo); err != nil {
				return fmt.Errorf("updating item: %w", err)
			}
			it, err := a.store.GetItem(ctx, a.user, args[0])
			if err != nil {
				return err
			}

			verb := "Completed"
			if undo {
				verb = "Reopened"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", formatOK(verb), it.Title)
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the task as not done")
	return cmd
}

func (a *App) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <item-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}

			ctx := context.Background()
			it, err := a.store.GetItem(ctx, a.user, args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteItem(ctx, a.user, args[0]); err != nil {
				return fmt.Errorf("deleting item: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", formatOK("Deleted"), it.Title)
			return nil
		},
	}
}

func (a *App) moveCmd() *cobra.Command {
	var (
		date  string
		start string
		end   string
	)

	cmd := &cobra.Command{
		Use:   "move <item-id>",
		Short: "Move an item to a new date or time",
		Long: `Move an item to another day, change its time range, or both.
Times that are not given keep their current value.`,
		Example: `  chronoflow move 0b6f7c1e-... --date=tomorrow
  chronoflow move 0b6f7c1e-... --start=14:00 --end=16:00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}

			var patch schedule.Patch
			if cmd.Flags().Changed("date") {
				d, err := dateutil.ParseRelativeDate(date, a.today())
				if err != nil {
					return fmt.Errorf("invalid date: %w", err)
				}
				key := dateutil.Key(d)
				patch.Date = &key
			}
			if cmd.Flags().Changed("start") {
				patch.StartTime = &start
			}
			if cmd.Flags().Changed("end") {
				patch.EndTime = &end
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to change: pass --date, --start or --end")
			}

			ctx := context.Background()
			it, err := a.store.GetItem(ctx, a.user, args[0])
			if err != nil {
				return err
			}
			if err := it.Apply(patch); err != nil {
				return err
			}
			if err := a.store.UpdateItem(ctx, it); err != nil {
				return fmt.Errorf("updating item: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", formatOK("Moved"))
			PrintItemRow(cmd.OutOrStdout(), it, titleWidth())
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "New date (YYYY-MM-DD or relative)")
	cmd.Flags().StringVar(&start, "start", "", "New start time (HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "New end time (HH:MM)")

	return cmd
}
