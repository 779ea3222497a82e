package meds

import (
	"time"

	"github.com/gmsas95/dosetrack/internal/dateutil"
)

// IsDosingDay reports whether date is a dosing day for the medication.
//
//   - daily: every day.
//   - weekly: days whose weekday is in the medication's weekday set. An
//     empty or unset set deliberately behaves like daily — callers rely on
//     a misconfigured set still producing a schedule.
//   - monthly: the day-of-month of the start date. Months too short for
//     that day simply never fire; there is no rollover.
//   - as-needed: never; entries exist only through manual logging.
func IsDosingDay(med *Medication, date time.Time) bool {
	switch med.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		if len(med.Weekdays) == 0 {
			return true
		}
		weekday := dateutil.Weekday(date)
		for _, w := range med.Weekdays {
			if w == weekday {
				return true
			}
		}
		return false
	case FrequencyMonthly:
		return dateutil.DayOfMonth(date) == dateutil.DayOfMonth(med.StartDate)
	case FrequencyAsNeeded:
		return false
	default:
		return false
	}
}

// DosingDays returns every dosing day in [start, end] inclusive.
func DosingDays(med *Medication, start, end time.Time) []time.Time {
	var days []time.Time
	for _, d := range dateutil.Days(start, end) {
		if IsDosingDay(med, d) {
			days = append(days, d)
		}
	}
	return days
}
