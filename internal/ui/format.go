package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// FormatDuration renders minutes as "45m", "2h" or "1h30m".
func FormatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}

func statusSymbol(it *schedule.Item) string {
	switch {
	case it.IsEvent():
		return "•"
	case it.Completed:
		return "☑"
	default:
		return "☐"
	}
}

// timeRange returns "HH:MM-HH:MM", or a placeholder of the same width.
func timeRange(it *schedule.Item) string {
	if !it.IsScheduled() {
		return "  all day  "
	}
	return it.StartTime + "-" + it.EndTime
}

func styleTitle(it *schedule.Item, s string) string {
	switch {
	case it.IsTask() && it.Completed:
		return colorDone.Sprint(s)
	case it.IsEvent():
		return colorEvent.Sprint(s)
	default:
		return colorTask.Sprint(s)
	}
}

// PrintItemRow prints one item line: status, times, title, duration and ID.
func PrintItemRow(w io.Writer, it *schedule.Item, maxTitleWidth int) {
	title := ansi.Truncate(it.Title, maxTitleWidth, "…")
	pad := maxTitleWidth - ansi.StringWidth(title)
	if pad < 0 {
		pad = 0
	}

	extra := ""
	if it.IsScheduled() {
		extra = FormatDuration(it.Duration)
	}
	if it.Recurrence != "" {
		extra += " ↻"
	}

	fmt.Fprintf(w, "  %s %s  %s%*s  %-8s %s\n",
		statusSymbol(it),
		timeRange(it),
		styleTitle(it, title), pad, "",
		formatMuted(extra),
		formatMuted(it.ID),
	)
}

// titleWidth fits titles to the terminal, leaving room for the other columns.
func titleWidth() int {
	// "  ☐ HH:MM-HH:MM  " + "  duration " + 36-char ID
	w := termWidth() - 17 - 11 - 36
	if w < 20 {
		return 20
	}
	if w > 60 {
		return 60
	}
	return w
}
