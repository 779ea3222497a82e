package adherence

import (
	"math"
	"time"

	"github.com/gmsas95/dosetrack/internal/dateutil"
	"github.com/gmsas95/dosetrack/internal/meds"
)

// Insights are secondary observations derived from the last 30 days of
// dose history.
type Insights struct {
	BestTimeOfDay  string `json:"best_time_of_day,omitempty"`
	BestTimeRate   int    `json:"best_time_rate"`
	WorstTimeOfDay string `json:"worst_time_of_day,omitempty"`
	WorstTimeRate  int    `json:"worst_time_rate"`

	WorstWeekday     string `json:"worst_weekday,omitempty"`
	WorstWeekdayRate int    `json:"worst_weekday_rate"`

	MostMissedMedication string `json:"most_missed_medication,omitempty"`
	MostMissedCount      int    `json:"most_missed_count"`

	StreakDays int `json:"streak_days"`
	// ConsistencyScore is 100 minus the rounded standard deviation of
	// the 14-day series, floored at 0. Flat adherence scores 100.
	ConsistencyScore int `json:"consistency_score"`
}

// timeOfDayBuckets are the fixed three-hour windows entries are grouped
// into by minutes-since-midnight.
var timeOfDayBuckets = []string{
	"00:00-03:00", "03:00-06:00", "06:00-09:00", "09:00-12:00",
	"12:00-15:00", "15:00-18:00", "18:00-21:00", "21:00-00:00",
}

type bucketCount struct {
	taken    int
	resolved int
}

// Insights computes the derived insight set over the last 30 days
func (a *Aggregator) Insights() (Insights, error) {
	today := dateutil.DayOf(a.now())
	start := today.AddDate(0, 0, -29)

	entries, err := a.entries.EntriesInRange(start, today)
	if err != nil {
		return Insights{}, err
	}

	var insights Insights
	a.timeOfDayInsights(entries, &insights)
	a.weekdayInsight(entries, &insights)
	a.mostMissedInsight(entries, &insights)

	streak, err := a.streak(today)
	if err != nil {
		return Insights{}, err
	}
	insights.StreakDays = streak

	trend, err := a.Trend()
	if err != nil {
		return Insights{}, err
	}
	insights.ConsistencyScore = consistency(trend)

	return insights, nil
}

func (a *Aggregator) timeOfDayInsights(entries []meds.DoseEntry, insights *Insights) {
	buckets := make([]bucketCount, len(timeOfDayBuckets))
	for _, e := range entries {
		minutes, err := dateutil.MinutesOfDay(e.Time)
		if err != nil {
			continue
		}
		idx := minutes / 180
		if e.Status == meds.StatusPending {
			continue
		}
		buckets[idx].resolved++
		if e.Status == meds.StatusTaken {
			buckets[idx].taken++
		}
	}

	best, worst := -1, -1
	for i, b := range buckets {
		if b.resolved == 0 {
			continue
		}
		r := rate(b.taken, b.resolved)
		if best == -1 || r > rate(buckets[best].taken, buckets[best].resolved) {
			best = i
		}
		if worst == -1 || r < rate(buckets[worst].taken, buckets[worst].resolved) {
			worst = i
		}
	}
	if best >= 0 {
		insights.BestTimeOfDay = timeOfDayBuckets[best]
		insights.BestTimeRate = rate(buckets[best].taken, buckets[best].resolved)
	}
	if worst >= 0 {
		insights.WorstTimeOfDay = timeOfDayBuckets[worst]
		insights.WorstTimeRate = rate(buckets[worst].taken, buckets[worst].resolved)
	}
}

func (a *Aggregator) weekdayInsight(entries []meds.DoseEntry, insights *Insights) {
	var buckets [7]bucketCount
	for _, e := range entries {
		if e.Status == meds.StatusPending {
			continue
		}
		idx := dateutil.Weekday(e.Date)
		buckets[idx].resolved++
		if e.Status == meds.StatusTaken {
			buckets[idx].taken++
		}
	}

	worst := -1
	for i, b := range buckets {
		if b.resolved == 0 {
			continue
		}
		if worst == -1 || rate(b.taken, b.resolved) < rate(buckets[worst].taken, buckets[worst].resolved) {
			worst = i
		}
	}
	if worst >= 0 {
		insights.WorstWeekday = time.Weekday(worst).String()
		insights.WorstWeekdayRate = rate(buckets[worst].taken, buckets[worst].resolved)
	}
}

func (a *Aggregator) mostMissedInsight(entries []meds.DoseEntry, insights *Insights) {
	missed := make(map[int64]int)
	for _, e := range entries {
		if e.Status == meds.StatusMissed {
			missed[e.MedicationID]++
		}
	}

	var worstID int64
	worstCount := 0
	for id, count := range missed {
		if count > worstCount || (count == worstCount && worstCount > 0 && id < worstID) {
			worstID = id
			worstCount = count
		}
	}
	if worstCount == 0 {
		return
	}

	insights.MostMissedCount = worstCount
	if med, err := a.entries.GetMedication(worstID); err == nil {
		insights.MostMissedMedication = med.Name
	}
}

// streak walks backwards from today counting consecutive days on which
// every resolved dose was taken and at least one dose was taken. The
// first day with no scheduled entries, a missed or skipped dose, or
// nothing taken terminates the walk.
func (a *Aggregator) streak(today time.Time) (int, error) {
	streak := 0
	for day := today; ; day = day.AddDate(0, 0, -1) {
		stats, err := a.Stats(day, day)
		if err != nil {
			return 0, err
		}
		if stats.Total == 0 || stats.Missed > 0 || stats.Skipped > 0 || stats.Taken == 0 {
			return streak, nil
		}
		streak++
	}
}

// consistency scores how stable the 14-day series is: 100 minus the
// rounded standard deviation of the daily rates, floored at 0. Days
// without scheduled doses are left out.
func consistency(series []DayRate) int {
	var rates []float64
	for _, d := range series {
		if d.Total > 0 {
			rates = append(rates, float64(d.Rate))
		}
	}
	if len(rates) == 0 {
		return 0
	}

	var sum float64
	for _, r := range rates {
		sum += r
	}
	mean := sum / float64(len(rates))

	var variance float64
	for _, r := range rates {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rates))

	score := 100 - int(math.Round(math.Sqrt(variance)))
	if score < 0 {
		score = 0
	}
	return score
}
