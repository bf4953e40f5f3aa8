// Package display turns schedule items into per-day fragments ready for
// rendering into a day-column grid.
//
// An item whose time range crosses midnight is split into two fragments:
// one on its own date ending at 23:59 and one on the following date
// starting at 00:00. Items dated outside the visible range are dropped
// entirely, including a continuation that would land on a visible day.
package display

import (
	"slices"
	"time"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Item is one display fragment of a schedule item.
type Item struct {
	schedule.Item

	// IsStart is true if this fragment contains the item's true start time.
	IsStart bool `json:"isStart"`
	// IsEnd is true if this fragment contains the item's true end time.
	IsEnd bool `json:"isEnd"`
}

// Day is the ordered list of fragments for one visible date.
type Day struct {
	Date  string `json:"date"`
	Items []Item `json:"items"`
}

// Buckets maps each visible date to its fragments, in visible-day order.
type Buckets []Day

// Dates returns the bucket keys in order.
func (b Buckets) Dates() []string {
	dates := make([]string, len(b))
	for i, d := range b {
		dates[i] = d.Date
	}
	return dates
}

// Lookup returns the fragments for date and whether date is visible.
func (b Buckets) Lookup(date string) ([]Item, bool) {
	for _, d := range b {
		if d.Date == date {
			return d.Items, true
		}
	}
	return nil, false
}

// Len returns the total number of fragments across all days.
func (b Buckets) Len() int {
	n := 0
	for _, d := range b {
		n += len(d.Items)
	}
	return n
}

// BucketForDisplay distributes items over the visible days.
// The result has exactly one entry per visible day (possibly empty) and
// no others. Items without a date or time range are skipped. Input items
// are not modified.
func BucketForDisplay(items []schedule.Item, visibleDays []time.Time) Buckets {
	buckets := make(Buckets, len(visibleDays))
	index := make(map[string]int, len(visibleDays))
	for i, day := range visibleDays {
		key := dateutil.Key(day)
		buckets[i] = Day{Date: key, Items: []Item{}}
		index[key] = i
	}

	add := func(frag Item) {
		if i, ok := index[frag.Date]; ok {
			buckets[i].Items = append(buckets[i].Items, frag)
		}
	}

	for _, it := range items {
		if it.Date == "" || it.StartTime == "" || it.EndTime == "" {
			continue
		}
		if _, ok := index[it.Date]; !ok {
			continue
		}

		if !it.CrossesMidnight() {
			add(Item{Item: it, IsStart: true, IsEnd: true})
			continue
		}

		first := Item{Item: it, IsStart: true, IsEnd: false}
		first.EndTime = schedule.EndOfDay
		first.Duration = schedule.TimeToMinutes(schedule.EndOfDay) - schedule.TimeToMinutes(it.StartTime)
		add(first)

		second := Item{Item: it, IsStart: false, IsEnd: true}
		second.Date = dateutil.NextKey(it.Date)
		second.StartTime = schedule.StartOfDay
		second.Duration = schedule.TimeToMinutes(it.EndTime)
		add(second)
	}

	for i := range buckets {
		slices.SortStableFunc(buckets[i].Items, func(a, b Item) int {
			return compareStart(a.StartTime, b.StartTime)
		})
	}
	return buckets
}

func compareStart(a, b string) int {
	if a == "" {
		a = schedule.StartOfDay
	}
	if b == "" {
		b = schedule.StartOfDay
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
