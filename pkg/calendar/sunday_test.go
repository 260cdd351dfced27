package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMostRecentSunday(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{"sunday itself", time.Date(2024, 12, 1, 18, 30, 0, 0, time.UTC), "2024-12-01"},
		{"monday after", time.Date(2024, 12, 2, 8, 0, 0, 0, time.UTC), "2024-12-01"},
		{"saturday before next", time.Date(2024, 12, 7, 23, 59, 0, 0, time.UTC), "2024-12-01"},
		{"across month", time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC), "2024-12-29"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MostRecentSunday(tc.in)
			assert.Equal(t, time.Sunday, got.Weekday())
			assert.Equal(t, tc.want, got.Format(DateLayout))
			assert.Zero(t, got.Hour())
		})
	}
}

func TestMostRecentSundayKeepsLocation(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	got := MostRecentSunday(time.Date(2024, 3, 13, 1, 0, 0, 0, loc))
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, "2024-03-10", got.Format(DateLayout))
}

func TestWeeksInMonthDecember2024(t *testing.T) {
	got := WeeksInMonth(2024, 11, time.UTC)
	require.Len(t, got, 5)
	want := []string{"2024-12-01", "2024-12-08", "2024-12-15", "2024-12-22", "2024-12-29"}
	for i, d := range got {
		assert.Equal(t, want[i], d.Format(DateLayout))
		assert.Equal(t, time.Sunday, d.Weekday())
	}
}

func TestWeeksInMonthFebruary(t *testing.T) {
	got := WeeksInMonth(2026, 1, nil)
	require.Len(t, got, 4)
	assert.Equal(t, "2026-02-01", got[0].Format(DateLayout))
	assert.Equal(t, "2026-02-22", got[3].Format(DateLayout))
}

func TestWeeksInMonthSkipsSundayOfPreviousMonth(t *testing.T) {
	got := WeeksInMonth(2024, 10, time.UTC)
	require.Len(t, got, 4)
	assert.Equal(t, "2024-11-03", got[0].Format(DateLayout))
	assert.Equal(t, "2024-11-24", got[3].Format(DateLayout))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 5, 5, 1, 0, 0, 0, time.UTC)
	b := time.Date(2024, 5, 5, 23, 0, 0, 0, time.UTC)
	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(a, b.AddDate(0, 0, 1)))
}
