package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/display"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// minColumnWidth keeps "HH:MM title" readable in narrow terminals.
const minColumnWidth = 14

var (
	gridHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	gridToday  = gridHeader.Foreground(lipgloss.Color("6")).Underline(true)
	gridColumn = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("8"))
	gridEvent = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	gridTask  = lipgloss.NewStyle()
	gridDone  = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	gridEmpty = lipgloss.NewStyle().Faint(true)
)

func (a *App) showCmd() *cobra.Command {
	var (
		start string
		days  int
		week  bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the schedule as day columns",
		Long: `Draw the schedule with one column per day.

Recurring items are expanded. Items running past midnight are split
across two columns; a continuation of an item that starts before the
first visible day is not shown.`,
		Example: `  chronoflow show
  chronoflow show --week
  chronoflow show --start=2025-01-13 --days=3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureStore(); err != nil {
				return err
			}

			first := a.today()
			if start != "" {
				d, err := dateutil.ParseDate(start)
				if err != nil {
					d, err = dateutil.ParseRelativeDate(start, a.today())
				}
				if err != nil {
					return fmt.Errorf("invalid start: %w", err)
				}
				first = d
			}
			if days < 1 || days > 31 {
				return fmt.Errorf("--days must be between 1 and 31")
			}

			visible := dateutil.VisibleDays(first, days, 31)
			if week {
				visible = dateutil.WeekDays(first)
			}
			buckets, err := a.buildBuckets(context.Background(), visible)
			if err != nil {
				return err
			}

			width := termWidth()/len(visible) - 1
			if width < minColumnWidth {
				width = minColumnWidth
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderGrid(buckets, dateutil.Key(a.today()), width))
			fmt.Fprintln(cmd.OutOrStdout(), formatMuted(gridSummary(buckets)))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD or relative, default: today)")
	cmd.Flags().IntVar(&days, "days", 7, "Number of day columns (1-31)")
	cmd.Flags().BoolVar(&week, "week", false, "Show Monday to Sunday of the week containing --start")
	return cmd
}

// buildBuckets loads, expands and buckets the user's items for visible.
func (a *App) buildBuckets(ctx context.Context, visible []time.Time) (display.Buckets, error) {
	first, last := visible[0], visible[len(visible)-1]
	stored, err := a.store.ListItemsByDateRange(ctx, a.user, first, last)
	if err != nil {
		return nil, fmt.Errorf("fetching items: %w", err)
	}

	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}
	items, err = recur.Expand(items, first, last)
	if err != nil {
		fmt.Fprintln(a.root.ErrOrStderr(), formatMuted("warning: "+err.Error()))
	}
	return display.BucketForDisplay(items, visible), nil
}

// renderGrid draws one column per bucket, width cells wide.
func renderGrid(buckets display.Buckets, today string, width int) string {
	cols := make([]string, len(buckets))
	for i, day := range buckets {
		cols[i] = renderColumn(day, day.Date == today, width)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderColumn(day display.Day, isToday bool, width int) string {
	header := gridHeader
	if isToday {
		header = gridToday
	}

	label := day.Date
	if d, err := time.Parse(schedule.DateLayout, day.Date); err == nil {
		label = d.Format("Mon Jan 2")
	}

	lines := []string{header.Render(ansi.Truncate(label, width-2, "")), ""}
	if len(day.Items) == 0 {
		lines = append(lines, gridEmpty.Render(" —"))
	}
	for _, it := range day.Items {
		lines = append(lines, renderCell(it, width))
	}
	return gridColumn.Width(width).Render(strings.Join(lines, "\n"))
}

func renderCell(it display.Item, width int) string {
	clock := it.StartTime
	if !it.IsStart {
		clock = "↳" + it.StartTime
	}
	text := " " + clock + " " + it.Title
	if !it.IsEnd {
		text += " →"
	}
	text = ansi.Truncate(text, width, "…")

	switch {
	case it.IsTask() && it.Completed:
		return gridDone.Render(text)
	case it.IsEvent():
		return gridEvent.Render(text)
	default:
		return gridTask.Render(text)
	}
}

// gridSummary counts the fragments on screen and their scheduled time.
// An item crossing midnight counts once per day it appears on.
func gridSummary(buckets display.Buckets) string {
	minutes := 0
	for _, day := range buckets {
		for _, it := range day.Items {
			minutes += it.Duration
		}
	}
	n := buckets.Len()
	noun := "fragments"
	if n == 1 {
		noun = "fragment"
	}
	return fmt.Sprintf("%d %s, %s scheduled", n, noun, FormatDuration(minutes))
}
