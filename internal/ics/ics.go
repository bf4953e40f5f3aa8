// Package ics renders schedule items as an iCalendar feed.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

const productID = "-//chronoflow//chronoflow//EN"

const (
	utcLayout   = "20060102T150405Z"
	localLayout = "20060102T150405"
)

// PropertyType carries the item type on every exported VEVENT.
const PropertyType = ical.ComponentProperty("X-CHRONOFLOW-TYPE")

// Export builds a VCALENDAR with one VEVENT per dated item. Wall-clock
// times are interpreted in loc and written with loc's TZID when it has an
// IANA name, otherwise in UTC. Items with a date but no time range become
// all-day events; unscheduled items are skipped.
func Export(items []schedule.Item, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("ChronoFlow")

	for _, it := range items {
		if it.Date == "" {
			continue
		}
		if err := addEvent(cal, it, loc); err != nil {
			return "", fmt.Errorf("exporting item %s: %w", it.ID, err)
		}
	}
	return cal.Serialize(), nil
}

func addEvent(cal *ical.Calendar, it schedule.Item, loc *time.Location) error {
	day, err := time.ParseInLocation(schedule.DateLayout, it.Date, loc)
	if err != nil {
		return fmt.Errorf("parsing date: %w", err)
	}

	ev := cal.AddEvent(it.ID + "@chronoflow")
	ev.SetSummary(it.Title)
	if it.Description != "" {
		ev.SetDescription(it.Description)
	}
	ev.SetProperty(PropertyType, string(it.Type))
	if !it.UpdatedAt.IsZero() {
		ev.SetDtStampTime(it.UpdatedAt)
	}

	if !it.IsScheduled() {
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	} else {
		endDay := day
		if it.CrossesMidnight() {
			endDay = day.AddDate(0, 0, 1)
		}
		tzid := zoneID(loc)
		setTime(ev, ical.ComponentPropertyDtStart, wallClock(day, it.StartTime), tzid)
		setTime(ev, ical.ComponentPropertyDtEnd, wallClock(endDay, it.EndTime), tzid)
	}

	if it.Recurrence != "" {
		ev.AddRrule(it.Recurrence)
	}
	if it.Type == schedule.TypeTask && it.Completed {
		ev.SetStatus(ical.ObjectStatusCompleted)
	}
	return nil
}

// wallClock returns the instant the clock reads hhmm on day, in day's location.
func wallClock(day time.Time, hhmm string) time.Time {
	m := schedule.TimeToMinutes(hhmm)
	return time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, day.Location())
}

// zoneID returns the IANA name of loc, or "" when loc has no portable name
// and times must be written in UTC.
func zoneID(loc *time.Location) string {
	name := loc.String()
	if name == "" || name == "UTC" || name == "Local" {
		return ""
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

// setTime writes a local time tagged with TZID so recurrences keep their
// wall-clock time across DST changes, or a UTC time without one.
func setTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time, tzid string) {
	if tzid == "" {
		ev.SetProperty(prop, t.UTC().Format(utcLayout))
		return
	}
	ev.SetProperty(prop, t.Format(localLayout), ical.WithTZID(tzid))
}
