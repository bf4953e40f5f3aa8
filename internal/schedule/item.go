// Package schedule defines the core domain types for chronoflow.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation errors.
var (
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrInvalidType       = errors.New("type must be 'event' or 'task'")
	ErrInvalidDateFormat = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidTimeFormat = errors.New("time must be in HH:MM format")
	ErrPartialTimeRange  = errors.New("start and end time must both be set or both be empty")
	ErrTimeWithoutDate   = errors.New("a time range requires a date")
	ErrZeroLength        = errors.New("start and end time cannot be equal")
)

// Domain errors.
var (
	ErrItemNotFound = errors.New("item not found")
	ErrUserNotFound = errors.New("user not found")
)

// ItemType distinguishes calendar events from tasks.
type ItemType string

const (
	TypeEvent ItemType = "event"
	TypeTask  ItemType = "task"
)

// Valid returns true if the type is a known value.
func (t ItemType) Valid() bool {
	switch t {
	case TypeEvent, TypeTask:
		return true
	default:
		return false
	}
}

// Source records where an item was created.
type Source string

const (
	SourceWeb       Source = "web"
	SourceAssistant Source = "assistant"
	SourceTelegram  Source = "telegram"
	SourceCLI       Source = "cli"
)

// Item is a task or event on a user's schedule.
type Item struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Type        ItemType  `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	// Date is "YYYY-MM-DD", empty when the item is unscheduled.
	Date string `json:"date,omitempty"`
	// StartTime and EndTime are "HH:MM". EndTime < StartTime means the
	// item runs past midnight into the next day.
	StartTime  string    `json:"startTime,omitempty"`
	EndTime    string    `json:"endTime,omitempty"`
	Duration   int       `json:"duration"`
	Color      string    `json:"color,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	Completed  bool      `json:"completed"`
	Recurrence string    `json:"recurrence,omitempty"` // RRULE body, e.g. "FREQ=WEEKLY;BYDAY=MO"
	Source     Source    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// New creates a new Item with validation.
// date may be empty for unscheduled tasks; start and end must both be set or both be empty.
func New(userID string, itemType ItemType, title, date, start, end string) (*Item, error) {
	now := time.Now()
	it := &Item{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      itemType,
		Title:     strings.TrimSpace(title),
		Date:      date,
		StartTime: start,
		EndTime:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := it.Validate(); err != nil {
		return nil, err
	}
	it.Duration = it.ComputeDuration()
	return it, nil
}

// Validate checks the item's fields.
func (it *Item) Validate() error {
	if strings.TrimSpace(it.Title) == "" {
		return ErrEmptyTitle
	}
	if !it.Type.Valid() {
		return ErrInvalidType
	}
	if it.Date != "" {
		if err := ValidateDate(it.Date); err != nil {
			return err
		}
	}
	hasStart := it.StartTime != ""
	hasEnd := it.EndTime != ""
	if hasStart != hasEnd {
		return ErrPartialTimeRange
	}
	if !hasStart {
		return nil
	}
	if it.Date == "" {
		return ErrTimeWithoutDate
	}
	if err := ValidateTime(it.StartTime); err != nil {
		return fmt.Errorf("start time: %w", err)
	}
	if err := ValidateTime(it.EndTime); err != nil {
		return fmt.Errorf("end time: %w", err)
	}
	if it.StartTime == it.EndTime {
		return ErrZeroLength
	}
	return nil
}

// ValidateDate checks that s is a YYYY-MM-DD calendar date.
func ValidateDate(s string) error {
	if len(s) != 10 {
		return ErrInvalidDateFormat
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ErrInvalidDateFormat
	}
	return nil
}

// ValidateTime checks that s is a zero-padded 24-hour HH:MM time.
func ValidateTime(s string) error {
	if len(s) != 5 {
		return ErrInvalidTimeFormat
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return ErrInvalidTimeFormat
	}
	return nil
}

// IsScheduled returns true if the item has a date and a time range.
func (it *Item) IsScheduled() bool {
	return it.Date != "" && it.StartTime != "" && it.EndTime != ""
}

// IsTask returns true if the item is a task.
func (it *Item) IsTask() bool {
	return it.Type == TypeTask
}

// IsEvent returns true if the item is an event.
func (it *Item) IsEvent() bool {
	return it.Type == TypeEvent
}

// CrossesMidnight reports whether the item's range ends on the following day.
// Zero-padded HH:MM strings order the same way as the times they encode.
func (it *Item) CrossesMidnight() bool {
	return it.StartTime != "" && it.EndTime != "" && it.StartTime > it.EndTime
}

// ComputeDuration returns the length of the item's time range in minutes.
// Unscheduled items keep whatever duration was stored on them.
func (it *Item) ComputeDuration() int {
	if it.StartTime == "" || it.EndTime == "" {
		return it.Duration
	}
	start := TimeToMinutes(it.StartTime)
	end := TimeToMinutes(it.EndTime)
	if it.CrossesMidnight() {
		return MinutesPerDay - start + end
	}
	return end - start
}

// DateValue parses the item's date. Returns the zero time if unscheduled.
func (it *Item) DateValue() time.Time {
	if it.Date == "" {
		return time.Time{}
	}
	d, err := time.Parse(DateLayout, it.Date)
	if err != nil {
		return time.Time{}
	}
	return d
}

// Patch holds optional changes to an item. Nil fields are left untouched.
type Patch struct {
	Type        *ItemType `json:"type,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Date        *string   `json:"date,omitempty"`
	StartTime   *string   `json:"startTime,omitempty"`
	EndTime     *string   `json:"endTime,omitempty"`
	Color       *string   `json:"color,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
	Recurrence  *string   `json:"recurrence,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply applies the patch, re-validates and recomputes the duration.
// The item is left unchanged if the result would be invalid.
func (it *Item) Apply(p Patch) error {
	next := *it
	if p.Type != nil {
		next.Type = *p.Type
	}
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Date != nil {
		next.Date = *p.Date
	}
	if p.StartTime != nil {
		next.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		next.EndTime = *p.EndTime
	}
	if p.Color != nil {
		next.Color = *p.Color
	}
	if p.Icon != nil {
		next.Icon = *p.Icon
	}
	if p.Completed != nil {
		next.Completed = *p.Completed
	}
	if p.Recurrence != nil {
		next.Recurrence = *p.Recurrence
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.Duration = next.ComputeDuration()
	next.UpdatedAt = time.Now()
	*it = next
	return nil
}
