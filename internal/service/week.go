package service

import (
	"time"
)

// Day keys are ISO dates (YYYY-MM-DD); week keys are the Monday date of the
// ISO week. String comparison of day keys is date comparison.

// WeekStart returns the Monday of the week containing dayKey.
func WeekStart(dayKey string) string {
	d, err := time.Parse(time.DateOnly, dayKey)
	if err != nil {
		return dayKey
	}
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return d.AddDate(0, 0, -offset).Format(time.DateOnly)
}

// WeekEnd returns the Sunday of the week starting at weekKey.
func WeekEnd(weekKey string) string {
	return AddDays(weekKey, 6)
}

// AddDays shifts a day key by n calendar days.
func AddDays(dayKey string, n int) string {
	d, err := time.Parse(time.DateOnly, dayKey)
	if err != nil {
		return dayKey
	}
	return d.AddDate(0, 0, n).Format(time.DateOnly)
}

// WeekdayIndex maps a day key to 0..6 with Monday first, matching the
// per-candidate breakdown array. Returns -1 for an unparseable key.
func WeekdayIndex(dayKey string) int {
	d, err := time.Parse(time.DateOnly, dayKey)
	if err != nil {
		return -1
	}
	return (int(d.Weekday()) + 6) % 7
}

// DaysBetween lists every day key from start through end inclusive.
// Returns nil when end precedes start.
func DaysBetween(start, end string) []string {
	if end < start {
		return nil
	}
	var days []string
	for day := start; day <= end; day = AddDays(day, 1) {
		days = append(days, day)
	}
	return days
}

// DayKey formats a time in the given location as a day key.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// ValidDayKey reports whether s is a well-formed day key.
func ValidDayKey(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
