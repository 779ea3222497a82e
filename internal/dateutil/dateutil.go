// Package dateutil provides the calendar and clock helpers shared by the
// schedule generator, notification scheduler and adherence aggregator.
// Dates are day-precision and timezone-naive: a calendar date is a
// time.Time truncated to midnight UTC.
package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gmsas95/dosetrack/internal/errors"
)

// DateLayout is the ISO calendar date layout used everywhere doses are keyed.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO "YYYY-MM-DD" string into a day-precision date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrInvalidDate, "VAL_001", fmt.Sprintf("invalid date %q", s))
	}
	return t, nil
}

// FormatDate renders a date as ISO "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DayOf truncates a timestamp to its calendar date.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from start to end.
// Negative when end precedes start.
func DaysBetween(start, end time.Time) int {
	return int(DayOf(end).Sub(DayOf(start)).Hours() / 24)
}

// Days returns every calendar date from start to end inclusive, in order.
// Returns nil when start is after end.
func Days(start, end time.Time) []time.Time {
	start, end = DayOf(start), DayOf(end)
	if start.After(end) {
		return nil
	}
	days := make([]time.Time, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Weekday returns the weekday index of a date, 0=Sunday..6=Saturday.
func Weekday(t time.Time) int {
	return int(t.Weekday())
}

// DayOfMonth returns the day-of-month of a date, 1..31.
func DayOfMonth(t time.Time) int {
	return t.Day()
}

// ParseClock parses a time-of-day string into (hour, minute).
// Accepts 24h "HH:MM" and 12h "HH:MM AM"/"HH:MM PM" (case-insensitive,
// with or without the space before the meridiem).
func ParseClock(s string) (hour, minute int, err error) {
	raw := strings.TrimSpace(s)
	upper := strings.ToUpper(raw)

	meridiem := ""
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(upper, suffix) {
			meridiem = suffix
			upper = strings.TrimSpace(strings.TrimSuffix(upper, suffix))
			break
		}
	}

	parts := strings.Split(upper, ":")
	if len(parts) != 2 {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalidClockTime, "VAL_002", fmt.Sprintf("invalid clock time %q", s))
	}

	hour, herr := strconv.Atoi(strings.TrimSpace(parts[0]))
	minute, merr := strconv.Atoi(strings.TrimSpace(parts[1]))
	if herr != nil || merr != nil || minute < 0 || minute > 59 {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalidClockTime, "VAL_002", fmt.Sprintf("invalid clock time %q", s))
	}

	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, 0, apperrors.Wrap(apperrors.ErrInvalidClockTime, "VAL_002", fmt.Sprintf("invalid clock time %q", s))
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, 0, apperrors.Wrap(apperrors.ErrInvalidClockTime, "VAL_002", fmt.Sprintf("invalid clock time %q", s))
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, 0, apperrors.Wrap(apperrors.ErrInvalidClockTime, "VAL_002", fmt.Sprintf("invalid clock time %q", s))
		}
	}

	return hour, minute, nil
}

// MinutesOfDay converts a time-of-day string to minutes since midnight.
func MinutesOfDay(s string) (int, error) {
	hour, minute, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	return hour*60 + minute, nil
}

// FormatClock renders (hour, minute) as 24h "HH:MM".
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
