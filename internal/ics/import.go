package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Import parses an iCalendar feed into items owned by userID. Timed
// events are converted to wall-clock times in loc. Events lasting a day
// or more become all-day items on their start date. Events that cannot
// be converted are skipped and reported in the joined error.
func Import(r io.Reader, userID string, loc *time.Location) ([]*schedule.Item, error) {
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var (
		items []*schedule.Item
		errs  []error
	)
	for _, ev := range cal.Events() {
		it, err := fromEvent(ev, userID, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.Id(), err))
			continue
		}
		items = append(items, it)
	}
	return items, errors.Join(errs...)
}

func fromEvent(ev *ical.VEvent, userID string, loc *time.Location) (*schedule.Item, error) {
	typ := schedule.TypeEvent
	if p := ev.GetProperty(PropertyType); p != nil && schedule.ItemType(p.Value).Valid() {
		typ = schedule.ItemType(p.Value)
	}

	var date, start, end string
	if allDay(ev) {
		d, err := ev.GetAllDayStartAt()
		if err != nil {
			return nil, fmt.Errorf("reading start: %w", err)
		}
		date = d.Format(schedule.DateLayout)
	} else {
		s, err := ev.GetStartAt()
		if err != nil {
			return nil, fmt.Errorf("reading start: %w", err)
		}
		s = s.In(loc)
		date = s.Format(schedule.DateLayout)

		e, err := ev.GetEndAt()
		if err == nil && e.After(s) && e.Sub(s) < 24*time.Hour {
			start = s.Format(schedule.TimeLayout)
			end = e.In(loc).Format(schedule.TimeLayout)
			if start == end {
				start, end = "", ""
			}
		}
	}

	it, err := schedule.New(userID, typ, propValue(ev, ical.ComponentPropertySummary), date, start, end)
	if err != nil {
		return nil, err
	}
	it.Description = propValue(ev, ical.ComponentPropertyDescription)
	it.Recurrence = propValue(ev, ical.ComponentPropertyRrule)
	it.Completed = typ == schedule.TypeTask && strings.EqualFold(propValue(ev, ical.ComponentPropertyStatus), string(ical.ObjectStatusCompleted))
	return it, nil
}

// allDay reports whether DTSTART is a bare date.
func allDay(ev *ical.VEvent) bool {
	p := ev.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if v, ok := p.ICalParameters["VALUE"]; ok && len(v) > 0 && strings.EqualFold(v[0], "DATE") {
		return true
	}
	return len(p.Value) == len("20060102")
}

func propValue(ev *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ev.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}
