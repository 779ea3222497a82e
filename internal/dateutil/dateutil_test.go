package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.January, d.Month())
	assert.Equal(t, 15, d.Day())

	_, err = ParseDate("15/01/2024")
	assert.Error(t, err)

	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestDays(t *testing.T) {
	start, _ := ParseDate("2024-01-01")
	end, _ := ParseDate("2024-01-03")

	days := Days(start, end)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-01-01", FormatDate(days[0]))
	assert.Equal(t, "2024-01-03", FormatDate(days[2]))

	// Start after end yields nothing
	assert.Nil(t, Days(end, start))

	// Single day range
	assert.Len(t, Days(start, start), 1)
}

func TestDaysBetween(t *testing.T) {
	start, _ := ParseDate("2024-01-01")
	end, _ := ParseDate("2024-01-31")

	assert.Equal(t, 30, DaysBetween(start, end))
	assert.Equal(t, -30, DaysBetween(end, start))
	assert.Equal(t, 0, DaysBetween(start, start))
}

func TestWeekday(t *testing.T) {
	// 2024-01-01 was a Monday
	d, _ := ParseDate("2024-01-01")
	assert.Equal(t, 1, Weekday(d))

	// 2024-01-07 was a Sunday
	d, _ = ParseDate("2024-01-07")
	assert.Equal(t, 0, Weekday(d))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input  string
		hour   int
		minute int
		ok     bool
	}{
		{"08:00", 8, 0, true},
		{"23:59", 23, 59, true},
		{"00:05", 0, 5, true},
		{"8:30", 8, 30, true},
		{"08:00 AM", 8, 0, true},
		{"08:00 PM", 20, 0, true},
		{"12:00 AM", 0, 0, true},
		{"12:00 PM", 12, 0, true},
		{"12:30 am", 0, 30, true},
		{"1:05pm", 13, 5, true},
		{"24:00", 0, 0, false},
		{"13:00 PM", 0, 0, false},
		{"0:00 AM", 0, 0, false},
		{"08:60", 0, 0, false},
		{"morning", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			hour, minute, err := ParseClock(tt.input)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

func TestMinutesOfDay(t *testing.T) {
	m, err := MinutesOfDay("08:15 AM")
	require.NoError(t, err)
	assert.Equal(t, 8*60+15, m)

	m, err = MinutesOfDay("21:00")
	require.NoError(t, err)
	assert.Equal(t, 21*60, m)
}
