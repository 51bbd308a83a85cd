package schedule

import (
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time at minute resolution, stored as minutes
// since midnight. 24:00 is allowed so a range can end at midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	t := TimeOfDay(hour*60 + minute)
	if t > minutesPerDay {
		return 0, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return t, nil
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	hour, ok := twoDigits(hh)
	if !ok {
		return 0, fmt.Errorf("time of day %q: bad hour", s)
	}
	minute, ok := twoDigits(mm)
	if !ok {
		return 0, fmt.Errorf("time of day %q: bad minute", s)
	}
	return NewTimeOfDay(hour, minute)
}

// twoDigits parses exactly two ASCII digits; no sign, no padding.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add returns t shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Minutes returns the length of the range; negative when End precedes Start.
func (r TimeRange) Minutes() int {
	return int(r.End - r.Start)
}

// Overlaps reports whether two half-open ranges share at least one minute.
// Ranges that merely touch (one ends where the other starts) do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && r.End > o.Start
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// DateOf truncates t to its calendar date at midnight UTC. Schedule dates carry
// no timezone; all arithmetic happens on whole days.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
