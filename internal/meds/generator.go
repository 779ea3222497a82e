package meds

// Generator expands medication definitions into concrete dose entries
type Generator struct {
	horizonDays int
}

// NewGenerator creates a schedule generator. horizonDays bounds the
// expansion window for medications without an end date.
func NewGenerator(horizonDays int) *Generator {
	if horizonDays <= 0 {
		horizonDays = 365
	}
	return &Generator{horizonDays: horizonDays}
}

// Expand walks every calendar date from the medication's start to its
// end (inclusive) and emits one pending entry per (dosing day, time).
// The walk is deliberately day-by-day: weekly and monthly rules are
// evaluated per date, not derived arithmetically.
//
// An empty times list yields zero entries, as does a start date after
// the end date. As-needed medications always expand to nothing.
// Emitted entries carry no ids; the store allocates them on insert.
func (g *Generator) Expand(med *Medication) []DoseEntry {
	if med.Frequency == FrequencyAsNeeded || len(med.Times) == 0 {
		return nil
	}

	end := med.ScheduleEnd(g.horizonDays)

	var entries []DoseEntry
	for _, day := range DosingDays(med, med.StartDate, end) {
		for _, clock := range med.Times {
			entries = append(entries, DoseEntry{
				MedicationID: med.ID,
				Date:         day,
				Time:         clock,
				Status:       StatusPending,
			})
		}
	}
	return entries
}
