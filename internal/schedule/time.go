package schedule

import "fmt"

const (
	// DateLayout is the canonical date key format.
	DateLayout = "2006-01-02"
	// TimeLayout is the wall-clock time format used by items.
	TimeLayout = "15:04"

	// StartOfDay and EndOfDay bound a calendar day for display purposes.
	StartOfDay = "00:00"
	EndOfDay   = "23:59"

	MinutesPerDay = 24 * 60
)

// TimeToMinutes converts "HH:MM" to minutes since midnight.
// Returns 0 for invalid input.
func TimeToMinutes(t string) int {
	if len(t) < 5 {
		return 0
	}
	hours := int(t[0]-'0')*10 + int(t[1]-'0')
	mins := int(t[3]-'0')*10 + int(t[4]-'0')
	return hours*60 + mins
}

// MinutesToTime converts minutes since midnight to "HH:MM" format.
func MinutesToTime(m int) string {
	if m < 0 {
		m = 0
	}
	if m >= MinutesPerDay {
		m = MinutesPerDay - 1
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// TimesOverlap returns true if two same-day time ranges overlap.
// Two time ranges overlap if: start1 < end2 AND start2 < end1
func TimesOverlap(start1, end1, start2, end2 string) bool {
	return start1 < end2 && start2 < end1
}
