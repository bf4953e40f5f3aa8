package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/chronoflow/chronoflow/internal/schedule"
	"github.com/chronoflow/chronoflow/internal/slots"
)

const systemPrompt = `You are ChronoFlow, a personal scheduling assistant. You read and change the user's schedule only through the tools provided.

Context:
- Current date and time: %s, %s %s (format: DayOfWeek, YYYY-MM-DD HH:MM)
- Today: %s (%s, %s)
- Tomorrow: %s (%s, %s)
- Working hours: %s to %s
- Next workday: %s (%s)
- Earliest start for new work: %s %s

%s

%s

Date rules:
- "today" ALWAYS means %s, even on a weekend
- "tomorrow" ALWAYS means %s, even on a weekend
- "monday", "next monday" means the next occurrence of that weekday
- "in X days" adds X days to today; "next week" adds 7 days
- Explicit "YYYY-MM-DD" means exactly that date

Rules:
1. Pass dates as YYYY-MM-DD and times as 24-hour HH:MM
2. An end time earlier than the start time means the item ends after midnight
3. Use the ids listed above or returned by list_items; never invent ids
4. Before proposing a time, use find_free_slot when the user did not give one
5. Items without a date are unscheduled tasks
6. After using tools, answer briefly in plain text and mention what you changed`

func dayKind(t time.Time) string {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return "weekend"
	default:
		return "weekday"
	}
}

type promptContext struct {
	now         time.Time
	dayStart    string
	dayEnd      string
	nextWorkday time.Time
	nextStart   slots.Slot
	upcoming    []*schedule.Item
	unscheduled []*schedule.Item
}

func buildSystemPrompt(pc promptContext) string {
	today := pc.now.Format(schedule.DateLayout)
	tomorrow := pc.now.AddDate(0, 0, 1)
	tomorrowKey := tomorrow.Format(schedule.DateLayout)

	return fmt.Sprintf(systemPrompt,
		pc.now.Format("Monday"), today, pc.now.Format(schedule.TimeLayout),
		pc.now.Format("Monday"), today, dayKind(pc.now),
		tomorrow.Format("Monday"), tomorrowKey, dayKind(tomorrow),
		pc.dayStart, pc.dayEnd,
		pc.nextWorkday.Format("Monday"), pc.nextWorkday.Format(schedule.DateLayout),
		pc.nextStart.Date, pc.nextStart.Start,
		formatUpcoming(pc.upcoming),
		formatUnscheduled(pc.unscheduled),
		today, tomorrowKey,
	)
}

func formatUpcoming(items []*schedule.Item) string {
	if len(items) == 0 {
		return "Schedule for the next 7 days: None"
	}

	var sb strings.Builder
	sb.WriteString("Schedule for the next 7 days:\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "- [%s] %s", it.ID, it.Date)
		if it.IsScheduled() {
			fmt.Fprintf(&sb, " %s-%s", it.StartTime, it.EndTime)
		}
		fmt.Fprintf(&sb, ": %s (%s%s)", it.Title, it.Type, status(it))
		if it.Recurrence != "" {
			fmt.Fprintf(&sb, " repeats %s", it.Recurrence)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatUnscheduled(items []*schedule.Item) string {
	if len(items) == 0 {
		return "Unscheduled tasks: None"
	}

	var sb strings.Builder
	sb.WriteString("Unscheduled tasks:\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "- [%s] %s%s\n", it.ID, it.Title, status(it))
	}
	return sb.String()
}

func status(it *schedule.Item) string {
	if it.IsTask() && it.Completed {
		return ", done"
	}
	return ""
}
