package meds

import (
	"fmt"
	"time"

	"github.com/gmsas95/dosetrack/internal/dateutil"
	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"github.com/gmsas95/dosetrack/internal/metrics"
	"go.uber.org/zap"
)

// ReminderHook receives medication lifecycle events so device reminders
// can be re-armed or cancelled. Implementations are best-effort: they
// log their own failures and never surface errors into the data
// mutation that triggered them.
type ReminderHook interface {
	MedicationSaved(med *Medication)
	MedicationDeleted(medicationID int64)
}

// NopReminderHook ignores all events
type NopReminderHook struct{}

func (NopReminderHook) MedicationSaved(*Medication) {}
func (NopReminderHook) MedicationDeleted(int64)     {}

// Service orchestrates medication mutations: every create or update
// regenerates the dose schedule and re-arms reminders, every delete
// cascades to entries and cancels reminders.
type Service struct {
	store     *Store
	gen       *Generator
	reminders ReminderHook
	logger    *zap.Logger
}

// NewService creates a medication service
func NewService(store *Store, gen *Generator, reminders ReminderHook, logger *zap.Logger) *Service {
	if reminders == nil {
		reminders = NopReminderHook{}
	}
	return &Service{
		store:     store,
		gen:       gen,
		reminders: reminders,
		logger:    logger,
	}
}

// MedicationInput carries the fields of a medication submission
type MedicationInput struct {
	Name            string    `json:"name"`
	Dosage          string    `json:"dosage"`
	Instructions    string    `json:"instructions"`
	Frequency       Frequency `json:"frequency"`
	Times           []string  `json:"times"`
	Weekdays        []int     `json:"weekdays"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	ReminderEnabled bool      `json:"reminder_enabled"`
}

// MedicationUpdate carries a partial edit; nil fields are left untouched.
// An explicit empty EndDate clears the end date.
type MedicationUpdate struct {
	Name            *string    `json:"name"`
	Dosage          *string    `json:"dosage"`
	Instructions    *string    `json:"instructions"`
	Frequency       *Frequency `json:"frequency"`
	Times           *[]string  `json:"times"`
	Weekdays        *[]int     `json:"weekdays"`
	StartDate       *string    `json:"start_date"`
	EndDate         *string    `json:"end_date"`
	ReminderEnabled *bool      `json:"reminder_enabled"`
}

// CreateMedication validates and stores a medication, expands its dose
// schedule and arms its reminders. The save succeeds even if reminder
// arming fails.
func (s *Service) CreateMedication(in MedicationInput) (*Medication, error) {
	med, err := s.buildMedication(in)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateMedication(med); err != nil {
		return nil, err
	}

	if err := s.regenerate(med); err != nil {
		return nil, err
	}

	s.reminders.MedicationSaved(med)
	metrics.MedicationsCreated.Inc()

	s.logger.Info("medication created",
		zap.Int64("medication_id", med.ID),
		zap.String("name", med.Name),
		zap.String("frequency", string(med.Frequency)),
	)

	return med, nil
}

// UpdateMedication applies a partial edit. Any field change triggers a
// full schedule regeneration and reminder re-arm.
func (s *Service) UpdateMedication(id int64, upd MedicationUpdate) (*Medication, error) {
	med, err := s.store.GetMedication(id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		med.Name = *upd.Name
	}
	if upd.Dosage != nil {
		med.Dosage = *upd.Dosage
	}
	if upd.Instructions != nil {
		med.Instructions = *upd.Instructions
	}
	if upd.Frequency != nil {
		med.Frequency = *upd.Frequency
	}
	if upd.Times != nil {
		med.Times = *upd.Times
	}
	if upd.Weekdays != nil {
		med.Weekdays = *upd.Weekdays
	}
	if upd.StartDate != nil {
		start, err := dateutil.ParseDate(*upd.StartDate)
		if err != nil {
			return nil, err
		}
		med.StartDate = start
	}
	if upd.EndDate != nil {
		if *upd.EndDate == "" {
			med.EndDate = nil
		} else {
			end, err := dateutil.ParseDate(*upd.EndDate)
			if err != nil {
				return nil, err
			}
			med.EndDate = &end
		}
	}
	if upd.ReminderEnabled != nil {
		med.ReminderEnabled = *upd.ReminderEnabled
	}

	if err := s.validateMedication(med); err != nil {
		return nil, err
	}

	if err := s.store.SaveMedication(med); err != nil {
		return nil, err
	}

	if err := s.regenerate(med); err != nil {
		return nil, err
	}

	s.reminders.MedicationSaved(med)

	s.logger.Info("medication updated", zap.Int64("medication_id", med.ID))

	return med, nil
}

// DeleteMedication removes the medication, all its dose entries and all
// its armed reminders.
func (s *Service) DeleteMedication(id int64) error {
	if err := s.store.DeleteMedication(id); err != nil {
		return err
	}
	s.reminders.MedicationDeleted(id)
	s.logger.Info("medication deleted", zap.Int64("medication_id", id))
	return nil
}

// Medications lists all registered medications
func (s *Service) Medications() ([]Medication, error) {
	return s.store.ListMedications()
}

// Medication returns one medication by id
func (s *Service) Medication(id int64) (*Medication, error) {
	return s.store.GetMedication(id)
}

// Schedule returns the full expanded dose schedule
func (s *Service) Schedule() ([]DoseEntry, error) {
	return s.store.Schedule()
}

// EntriesForDate returns the dose entries for one calendar date
func (s *Service) EntriesForDate(date time.Time) ([]DoseEntry, error) {
	return s.store.EntriesForDate(date)
}

// MedicationsForDate joins a date's dose entries with their medication's
// display fields, the shape day-view callers consume.
func (s *Service) MedicationsForDate(date time.Time) ([]MedicationDose, error) {
	entries, err := s.store.EntriesForDate(date)
	if err != nil {
		return nil, err
	}

	medsByID := make(map[int64]*Medication)
	doses := make([]MedicationDose, 0, len(entries))
	for _, entry := range entries {
		med, ok := medsByID[entry.MedicationID]
		if !ok {
			med, err = s.store.GetMedication(entry.MedicationID)
			if err != nil {
				// Orphaned entry; skip rather than fail the whole view.
				s.logger.Warn("dose entry without medication",
					zap.Int64("entry_id", entry.ID),
					zap.Int64("medication_id", entry.MedicationID),
				)
				continue
			}
			medsByID[entry.MedicationID] = med
		}
		doses = append(doses, MedicationDose{
			EntryID:      entry.ID,
			MedicationID: med.ID,
			Name:         med.Name,
			Dosage:       med.Dosage,
			Instructions: med.Instructions,
			Date:         entry.Date,
			Time:         entry.Time,
			Status:       entry.Status,
			IsManual:     entry.IsManual,
		})
	}
	return doses, nil
}

// UpdateStatus mutates one dose entry's status
func (s *Service) UpdateStatus(entryID int64, status DoseStatus) error {
	if err := s.store.UpdateEntryStatus(entryID, status); err != nil {
		return err
	}
	metrics.StatusUpdates.WithLabelValues(string(status)).Inc()
	return nil
}

// AddManualEntry logs a dose outside the generator, the only write path
// for as-needed medications.
func (s *Service) AddManualEntry(medicationID int64, dateStr, timeStr string, status DoseStatus) (*DoseEntry, error) {
	med, err := s.store.GetMedication(medicationID)
	if err != nil {
		return nil, err
	}

	date, err := dateutil.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if _, _, err := dateutil.ParseClock(timeStr); err != nil {
		return nil, err
	}
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidStatus, "VAL_003", fmt.Sprintf("invalid dose status %q", status))
	}

	entry := &DoseEntry{
		MedicationID: med.ID,
		Date:         date,
		Time:         timeStr,
		Status:       status,
		IsManual:     true,
	}
	if err := s.store.InsertEntry(entry); err != nil {
		return nil, err
	}

	s.logger.Info("manual dose entry added",
		zap.Int64("medication_id", med.ID),
		zap.Int64("entry_id", entry.ID),
		zap.String("date", dateutil.FormatDate(date)),
	)

	return entry, nil
}

// regenerate replaces the medication's stored entries with a fresh
// expansion. An as-needed medication expands to nothing: any schedule
// generated under a previous frequency is cleared, but manually logged
// entries are kept — the generator never owns those.
func (s *Service) regenerate(med *Medication) error {
	if med.Frequency == FrequencyAsNeeded {
		return s.store.DeleteGeneratedEntries(med.ID)
	}
	entries := s.gen.Expand(med)
	if err := s.store.ReplaceEntries(med.ID, entries); err != nil {
		return err
	}
	metrics.EntriesGenerated.Add(float64(len(entries)))
	s.logger.Debug("schedule regenerated",
		zap.Int64("medication_id", med.ID),
		zap.Int("entries", len(entries)),
	)
	return nil
}

func (s *Service) buildMedication(in MedicationInput) (*Medication, error) {
	med := &Medication{
		Name:            in.Name,
		Dosage:          in.Dosage,
		Instructions:    in.Instructions,
		Frequency:       in.Frequency,
		Times:           in.Times,
		Weekdays:        in.Weekdays,
		ReminderEnabled: in.ReminderEnabled,
	}

	if in.StartDate == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidDate, "VAL_001", "start date is required")
	}
	start, err := dateutil.ParseDate(in.StartDate)
	if err != nil {
		return nil, err
	}
	med.StartDate = start

	if in.EndDate != "" {
		end, err := dateutil.ParseDate(in.EndDate)
		if err != nil {
			return nil, err
		}
		med.EndDate = &end
	}

	if err := s.validateMedication(med); err != nil {
		return nil, err
	}
	return med, nil
}

func (s *Service) validateMedication(med *Medication) error {
	if med.Name == "" {
		return apperrors.New("GEN_002", "medication name is required")
	}

	// An absent frequency defaults to daily; anything else unknown is
	// rejected.
	if med.Frequency == "" {
		med.Frequency = FrequencyDaily
	}
	if !med.Frequency.Valid() {
		return apperrors.Wrap(apperrors.ErrInvalidFrequency, "VAL_004", fmt.Sprintf("invalid frequency %q", med.Frequency))
	}

	if med.Frequency != FrequencyAsNeeded && len(med.Times) == 0 {
		return apperrors.Wrap(apperrors.ErrEmptyTimes, "VAL_005", "reminder times are required for scheduled medications")
	}
	for _, clock := range med.Times {
		if _, _, err := dateutil.ParseClock(clock); err != nil {
			return err
		}
	}

	for _, w := range med.Weekdays {
		if w < 0 || w > 6 {
			return apperrors.New("GEN_002", fmt.Sprintf("invalid weekday %d", w))
		}
	}

	return nil
}
