// Package adherence computes adherence statistics over the dose entry
// history: range counts, rolling per-day series, and derived insights.
package adherence

import (
	"math"
	"time"

	"github.com/gmsas95/dosetrack/internal/dateutil"
	"github.com/gmsas95/dosetrack/internal/meds"
)

// EntrySource is the slice of the dose store the aggregator reads
type EntrySource interface {
	EntriesInRange(start, end time.Time) ([]meds.DoseEntry, error)
	GetMedication(id int64) (*meds.Medication, error)
}

// Stats are the adherence counts for one date range
type Stats struct {
	Total   int `json:"total"`
	Taken   int `json:"taken"`
	Missed  int `json:"missed"`
	Skipped int `json:"skipped"`
	Pending int `json:"pending"`
	// AdherenceRate is taken over resolved entries (total minus pending)
	// as a rounded percentage, 0 when nothing has resolved yet.
	AdherenceRate int `json:"adherence_rate"`
}

// DayRate is one day of a rolling adherence series
type DayRate struct {
	Date  time.Time `json:"date"`
	Total int       `json:"total"`
	Rate  int       `json:"rate"`
}

// Aggregator computes adherence statistics from the dose store
type Aggregator struct {
	entries EntrySource
	now     func() time.Time
}

// NewAggregator creates an adherence aggregator
func NewAggregator(entries EntrySource) *Aggregator {
	return &Aggregator{entries: entries, now: time.Now}
}

// Stats counts entries whose date falls in [start, end] inclusive
func (a *Aggregator) Stats(start, end time.Time) (Stats, error) {
	entries, err := a.entries.EntriesInRange(start, end)
	if err != nil {
		return Stats{}, err
	}
	return tally(entries), nil
}

// Weekly returns the per-day adherence series for the last 7 days
func (a *Aggregator) Weekly() ([]DayRate, error) {
	return a.series(7)
}

// Monthly returns the per-day adherence series for the last 30 days
func (a *Aggregator) Monthly() ([]DayRate, error) {
	return a.series(30)
}

// Trend returns the per-day adherence series for the last 14 days
func (a *Aggregator) Trend() ([]DayRate, error) {
	return a.series(14)
}

// series walks a sliding single-day window back from today, reusing the
// range query per day so every rate shares the one range definition.
func (a *Aggregator) series(days int) ([]DayRate, error) {
	today := dateutil.DayOf(a.now())
	out := make([]DayRate, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		stats, err := a.Stats(day, day)
		if err != nil {
			return nil, err
		}
		out = append(out, DayRate{Date: day, Total: stats.Total, Rate: stats.AdherenceRate})
	}
	return out, nil
}

func tally(entries []meds.DoseEntry) Stats {
	var stats Stats
	for _, e := range entries {
		stats.Total++
		switch e.Status {
		case meds.StatusTaken:
			stats.Taken++
		case meds.StatusMissed:
			stats.Missed++
		case meds.StatusSkipped:
			stats.Skipped++
		case meds.StatusPending:
			stats.Pending++
		}
	}
	stats.AdherenceRate = rate(stats.Taken, stats.Total-stats.Pending)
	return stats
}

// rate is the rounded percentage taken/resolved, 0 on an empty
// denominator so an all-pending range can never divide by zero.
func rate(taken, resolved int) int {
	if resolved <= 0 {
		return 0
	}
	return int(math.Round(float64(taken) / float64(resolved) * 100))
}
