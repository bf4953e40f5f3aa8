package schedule

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("scheduled event", func(t *testing.T) {
		it, err := New("u1", TypeEvent, "  Standup ", "2025-01-15", "09:00", "09:30")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if it.ID == "" {
			t.Error("expected ID to be assigned")
		}
		if it.Title != "Standup" {
			t.Errorf("got title %q, want %q", it.Title, "Standup")
		}
		if it.Duration != 30 {
			t.Errorf("got duration %d, want 30", it.Duration)
		}
		if !it.IsScheduled() {
			t.Error("expected item to be scheduled")
		}
		if it.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("unscheduled task", func(t *testing.T) {
		it, err := New("u1", TypeTask, "Buy milk", "", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if it.IsScheduled() {
			t.Error("expected item to be unscheduled")
		}
		if it.Duration != 0 {
			t.Errorf("got duration %d, want 0", it.Duration)
		}
	})

	t.Run("crossing midnight", func(t *testing.T) {
		it, err := New("u1", TypeEvent, "Night shift", "2024-01-01", "23:00", "01:00")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !it.CrossesMidnight() {
			t.Error("expected item to cross midnight")
		}
		if it.Duration != 120 {
			t.Errorf("got duration %d, want 120", it.Duration)
		}
	})
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name     string
		itemType ItemType
		title    string
		date     string
		start    string
		end      string
		wantErr  error
	}{
		{name: "empty title", itemType: TypeTask, title: " ", wantErr: ErrEmptyTitle},
		{name: "invalid type", itemType: "meeting", title: "x", wantErr: ErrInvalidType},
		{name: "bad date", itemType: TypeTask, title: "x", date: "15-01-2025", wantErr: ErrInvalidDateFormat},
		{name: "start only", itemType: TypeTask, title: "x", date: "2025-01-15", start: "09:00", wantErr: ErrPartialTimeRange},
		{name: "time without date", itemType: TypeTask, title: "x", start: "09:00", end: "10:00", wantErr: ErrTimeWithoutDate},
		{name: "bad start", itemType: TypeTask, title: "x", date: "2025-01-15", start: "9:00", end: "10:00", wantErr: ErrInvalidTimeFormat},
		{name: "bad end", itemType: TypeTask, title: "x", date: "2025-01-15", start: "09:00", end: "25:00", wantErr: ErrInvalidTimeFormat},
		{name: "zero length", itemType: TypeEvent, title: "x", date: "2025-01-15", start: "09:00", end: "09:00", wantErr: ErrZeroLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("u1", tt.itemType, tt.title, tt.date, tt.start, tt.end)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApply(t *testing.T) {
	it, err := New("u1", TypeEvent, "Gym", "2025-01-15", "18:00", "19:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("moves the range and recomputes duration", func(t *testing.T) {
		start, end := "22:30", "00:30"
		if err := it.Apply(Patch{StartTime: &start, EndTime: &end}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if it.Duration != 120 {
			t.Errorf("got duration %d, want 120", it.Duration)
		}
	})

	t.Run("invalid patch leaves item untouched", func(t *testing.T) {
		before := *it
		empty := ""
		err := it.Apply(Patch{Title: &empty})
		if !errors.Is(err, ErrEmptyTitle) {
			t.Fatalf("got error %v, want %v", err, ErrEmptyTitle)
		}
		if *it != before {
			t.Errorf("item changed after failed patch: %+v", *it)
		}
	})

	t.Run("clearing the date unschedules", func(t *testing.T) {
		empty := ""
		err := it.Apply(Patch{Date: &empty, StartTime: &empty, EndTime: &empty})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if it.IsScheduled() {
			t.Error("expected item to be unscheduled")
		}
	})
}

func TestPatchEmpty(t *testing.T) {
	if !(Patch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	title := "x"
	if (Patch{Title: &title}).Empty() {
		t.Error("patch with title should not be empty")
	}
}
