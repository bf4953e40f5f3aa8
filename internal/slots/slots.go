// Package slots finds free time in a user's working hours.
package slots

import (
	"sort"
	"time"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Step is the granularity of proposed start times, in minutes.
const Step = 15

// Slot is a proposed time range on one day.
type Slot struct {
	Date  string `json:"date"`  // YYYY-MM-DD
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
}

// Finder locates free slots within configured working hours.
type Finder struct {
	workdays map[time.Weekday]bool
	dayStart string // "HH:MM"
	dayEnd   string // "HH:MM"
}

// New creates a Finder for the given workdays and working hours.
func New(workdays []time.Weekday, dayStart, dayEnd string) *Finder {
	wd := make(map[time.Weekday]bool, len(workdays))
	for _, d := range workdays {
		wd[d] = true
	}
	return &Finder{
		workdays: wd,
		dayStart: dayStart,
		dayEnd:   dayEnd,
	}
}

// DayStart returns the configured day start time.
func (f *Finder) DayStart() string {
	return f.dayStart
}

// DayEnd returns the configured day end time.
func (f *Finder) DayEnd() string {
	return f.dayEnd
}

// IsWorkday returns true if the given time falls on a configured workday.
func (f *Finder) IsWorkday(t time.Time) bool {
	return f.workdays[t.Weekday()]
}

// NextWorkday returns the first workday strictly after from, or the next
// calendar day if no workdays are configured.
func (f *Finder) NextWorkday(from time.Time) time.Time {
	next := from.AddDate(0, 0, 1)
	for range 7 {
		if f.IsWorkday(next) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
	return from.AddDate(0, 0, 1)
}

// NextAvailableStart returns the next moment work can begin.
// Before hours on a workday this is today's day start; during hours it is
// now rounded up to the next quarter hour; otherwise the next workday's start.
func (f *Finder) NextAvailableStart(now time.Time) Slot {
	nowTime := now.Format(schedule.TimeLayout)

	if f.IsWorkday(now) {
		if nowTime < f.dayStart {
			return Slot{Date: now.Format(schedule.DateLayout), Start: f.dayStart, End: f.dayEnd}
		}
		if nowTime < f.dayEnd {
			rounded := roundUp(now)
			start := rounded.Format(schedule.TimeLayout)
			if rounded.YearDay() == now.YearDay() && start < f.dayEnd {
				return Slot{Date: now.Format(schedule.DateLayout), Start: start, End: f.dayEnd}
			}
		}
	}

	next := f.NextWorkday(now)
	return Slot{Date: next.Format(schedule.DateLayout), Start: f.dayStart, End: f.dayEnd}
}

// FindFree returns the earliest free range of duration minutes on date,
// within working hours and not before notBefore. items may span any dates;
// only those occupying date are considered, including the after-midnight
// part of items from the previous day.
func (f *Finder) FindFree(items []schedule.Item, date time.Time, duration int, notBefore time.Time) (Slot, bool) {
	if duration <= 0 {
		return Slot{}, false
	}
	key := date.Format(schedule.DateLayout)

	start := schedule.TimeToMinutes(f.dayStart)
	end := schedule.TimeToMinutes(f.dayEnd)
	if !notBefore.IsZero() {
		switch nb := notBefore.Format(schedule.DateLayout); {
		case nb > key:
			return Slot{}, false
		case nb == key:
			m := notBefore.Hour()*60 + notBefore.Minute()
			if notBefore.Second() > 0 || notBefore.Nanosecond() > 0 {
				m++
			}
			start = max(start, ceilStep(m))
		}
	}

	busy := busyIntervals(items, key)
	for s := start; s+duration <= end; {
		blocked := false
		for _, b := range busy {
			if s < b.end && b.start < s+duration {
				s = ceilStep(b.end)
				blocked = true
				break
			}
		}
		if !blocked {
			return Slot{
				Date:  key,
				Start: schedule.MinutesToTime(s),
				End:   schedule.MinutesToTime(s + duration),
			}, true
		}
	}
	return Slot{}, false
}

// FindNext searches workdays from the day of from onward, up to days days,
// for the first free range of duration minutes.
func (f *Finder) FindNext(items []schedule.Item, from time.Time, duration, days int) (Slot, bool) {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for i := 0; i < days; i++ {
		if f.IsWorkday(day) {
			if slot, ok := f.FindFree(items, day, duration, from); ok {
				return slot, true
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return Slot{}, false
}

type interval struct {
	start, end int
}

// busyIntervals returns the occupied minute ranges of the day key, sorted by start.
func busyIntervals(items []schedule.Item, key string) []interval {
	var out []interval
	for i := range items {
		it := &items[i]
		if !it.IsScheduled() {
			continue
		}
		start := schedule.TimeToMinutes(it.StartTime)
		end := schedule.TimeToMinutes(it.EndTime)
		switch {
		case it.Date == key && it.CrossesMidnight():
			out = append(out, interval{start, schedule.MinutesPerDay})
		case it.Date == key:
			out = append(out, interval{start, end})
		case it.CrossesMidnight() && dateutil.NextKey(it.Date) == key:
			out = append(out, interval{0, end})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func ceilStep(m int) int {
	if r := m % Step; r != 0 {
		return m + Step - r
	}
	return m
}

// roundUp rounds a time up to the next Step-minute boundary.
func roundUp(t time.Time) time.Time {
	remainder := t.Minute() % Step
	if remainder == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t
	}
	return t.Add(time.Duration(Step-remainder) * time.Minute).Truncate(time.Minute)
}
