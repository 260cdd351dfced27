package calendar

import "time"

// DateLayout is the ISO calendar date layout used across the API.
const DateLayout = "2006-01-02"

// MostRecentSunday returns t truncated to midnight when it falls on a Sunday,
// otherwise midnight of the Sunday before it. The location of t is kept.
func MostRecentSunday(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// WeeksInMonth lists the Sundays of the given year and zero-based month.
// One report column is built per returned date.
func WeeksInMonth(year int, month int, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	offset := (7 - int(first.Weekday())) % 7
	sundays := make([]time.Time, 0, 5)
	for d := first.AddDate(0, 0, offset); d.Month() == first.Month(); d = d.AddDate(0, 0, 7) {
		sundays = append(sundays, d)
	}
	return sundays
}

// SameDay reports whether a and b share a calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LoadLocation resolves a timezone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
