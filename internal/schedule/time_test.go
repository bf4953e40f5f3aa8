package schedule

import "testing"

func TestTimeToMinutes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "midnight", input: "00:00", want: 0},
		{name: "9am", input: "09:00", want: 540},
		{name: "11:59pm", input: "23:59", want: 1439},
		{name: "with minutes", input: "09:30", want: 570},
		{name: "invalid short", input: "9:00", want: 0},
		{name: "empty", input: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeToMinutes(tt.input)
			if got != tt.want {
				t.Errorf("TimeToMinutes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMinutesToTime(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  string
	}{
		{name: "midnight", input: 0, want: "00:00"},
		{name: "with minutes", input: 570, want: "09:30"},
		{name: "negative clamps to zero", input: -10, want: "00:00"},
		{name: "over 24h clamps", input: 1500, want: "23:59"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinutesToTime(tt.input)
			if got != tt.want {
				t.Errorf("MinutesToTime(%d) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTimesOverlap(t *testing.T) {
	if !TimesOverlap("09:00", "10:00", "09:30", "11:00") {
		t.Error("expected overlap")
	}
	if TimesOverlap("09:00", "10:00", "10:00", "11:00") {
		t.Error("adjacent ranges should not overlap")
	}
}
