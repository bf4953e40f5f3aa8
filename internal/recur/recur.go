// Package recur expands repeating schedule items into dated occurrences.
package recur

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// MaxOccurrences caps the occurrences produced for one item.
const MaxOccurrences = 500

// ErrInvalidRule is wrapped by errors for items whose rule cannot be parsed.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Validate reports whether rule is an RRULE body rrule-go can parse.
// An empty rule is valid.
func Validate(rule string) error {
	if rule == "" {
		return nil
	}
	if _, err := rrule.StrToRRule(normalize(rule)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// Expand replaces every recurring item with one copy per occurrence whose
// date falls in [start, end] (days, inclusive). Items without a rule are
// returned unchanged. Items whose rule cannot be parsed are kept as a single
// item, and the returned error lists them; the slice is usable either way.
func Expand(items []schedule.Item, start, end time.Time) ([]schedule.Item, error) {
	from := floorDay(start)
	to := floorDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)

	out := make([]schedule.Item, 0, len(items))
	var errs []error
	for _, it := range items {
		if it.Recurrence == "" || it.Date == "" {
			out = append(out, it)
			continue
		}

		occ, err := occurrences(it, from, to)
		if err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", it.ID, err))
			out = append(out, it)
			continue
		}
		out = append(out, occ...)
	}
	return out, errors.Join(errs...)
}

func occurrences(it schedule.Item, from, to time.Time) ([]schedule.Item, error) {
	anchor, err := anchorOf(it)
	if err != nil {
		return nil, err
	}

	r, err := rrule.StrToRRule(normalize(it.Recurrence))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	r.DTStart(anchor)

	times := r.Between(from, to, true)
	if len(times) > MaxOccurrences {
		times = times[:MaxOccurrences]
	}

	out := make([]schedule.Item, 0, len(times))
	for _, t := range times {
		occ := it
		occ.Date = t.Format(schedule.DateLayout)
		out = append(out, occ)
	}
	return out, nil
}

// anchorOf returns the item's first start as a floating UTC time.
func anchorOf(it schedule.Item) (time.Time, error) {
	clock := it.StartTime
	if clock == "" {
		clock = schedule.StartOfDay
	}
	t, err := time.Parse(schedule.DateLayout+" "+schedule.TimeLayout, it.Date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing anchor: %w", err)
	}
	return t, nil
}

// floorDay returns midnight UTC of t's calendar date in its own location.
func floorDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalize(rule string) string {
	rule = strings.TrimSpace(rule)
	if len(rule) >= 6 && strings.EqualFold(rule[:6], "RRULE:") {
		rule = rule[6:]
	}
	return rule
}
