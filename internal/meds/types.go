package meds

import (
	"time"
)

// Frequency governs which calendar days are dosing days
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyAsNeeded Frequency = "as-needed"
)

// Valid reports whether the frequency is one of the supported values
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyAsNeeded:
		return true
	}
	return false
}

// DoseStatus is the lifecycle state of a single scheduled dose
type DoseStatus string

const (
	StatusPending DoseStatus = "pending"
	StatusTaken   DoseStatus = "taken"
	StatusMissed  DoseStatus = "missed"
	StatusSkipped DoseStatus = "skipped"
)

// Valid reports whether the status is one of the supported values
func (s DoseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// Medication represents a registered medication with its dosing schedule
type Medication struct {
	ID           int64  `json:"id" gorm:"primaryKey"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"` // e.g., "10mg", "1 tablet"
	Instructions string `json:"instructions,omitempty"`

	// Schedule
	Frequency Frequency `json:"frequency" gorm:"index"`
	// Times holds the per-day reminder times, "HH:MM" or "HH:MM AM/PM",
	// in the order the user entered them.
	Times     []string `json:"times" gorm:"-"`
	TimesJSON string   `json:"-" gorm:"type:text"` // Serialized times
	// Weekdays is the dosing weekday set (0=Sunday..6=Saturday), used only
	// when Frequency is weekly. An empty set means every day.
	Weekdays     []int  `json:"weekdays,omitempty" gorm:"-"`
	WeekdaysJSON string `json:"-" gorm:"type:text"` // Serialized weekdays

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	ReminderEnabled bool `json:"reminder_enabled" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduleEnd returns the inclusive last day of the expansion window:
// the explicit end date when set, otherwise start plus the horizon.
func (m *Medication) ScheduleEnd(horizonDays int) time.Time {
	if m.EndDate != nil {
		return *m.EndDate
	}
	return m.StartDate.AddDate(0, 0, horizonDays)
}

// DoseEntry is one concrete (date, time) instance a medication is due
type DoseEntry struct {
	ID           int64      `json:"id" gorm:"primaryKey"`
	MedicationID int64      `json:"medication_id" gorm:"index"`
	Date         time.Time  `json:"date" gorm:"index"`
	Time         string     `json:"time"` // clock string as captured at generation
	Status       DoseStatus `json:"status" gorm:"index"`
	// IsManual marks entries added outside the generator, e.g. as-needed
	// doses logged by hand.
	IsManual bool `json:"is_manual,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MedicationDose is a dose entry joined with its medication's display
// fields, the shape consumed by day-view callers
type MedicationDose struct {
	EntryID      int64      `json:"entry_id"`
	MedicationID int64      `json:"medication_id"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Instructions string     `json:"instructions,omitempty"`
	Date         time.Time  `json:"date"`
	Time         string     `json:"time"`
	Status       DoseStatus `json:"status"`
	IsManual     bool       `json:"is_manual,omitempty"`
}
