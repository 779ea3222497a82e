package meds

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gmsas95/dosetrack/internal/dateutil"
	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"gorm.io/gorm"
)

// Store handles medication and dose-entry persistence
type Store struct {
	db  *gorm.DB
	ids Allocator
}

// NewStore creates a new medication store
func NewStore(db *gorm.DB, ids Allocator) (*Store, error) {
	if err := db.AutoMigrate(&Medication{}, &DoseEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate medication schemas: %w", err)
	}
	return &Store{db: db, ids: ids}, nil
}

// serialize packs the slice-valued fields into their text columns
func (s *Store) serialize(med *Medication) {
	timesJSON, _ := json.Marshal(med.Times)
	med.TimesJSON = string(timesJSON)
	daysJSON, _ := json.Marshal(med.Weekdays)
	med.WeekdaysJSON = string(daysJSON)
}

func (s *Store) deserialize(med *Medication) {
	if med.TimesJSON != "" {
		json.Unmarshal([]byte(med.TimesJSON), &med.Times)
	}
	if med.WeekdaysJSON != "" {
		json.Unmarshal([]byte(med.WeekdaysJSON), &med.Weekdays)
	}
}

// Medication operations

func (s *Store) CreateMedication(med *Medication) error {
	if med.ID == 0 {
		med.ID = s.ids.Next(s.db)
	}
	med.StartDate = dateutil.DayOf(med.StartDate)
	if med.EndDate != nil {
		end := dateutil.DayOf(*med.EndDate)
		med.EndDate = &end
	}
	s.serialize(med)
	med.CreatedAt = time.Now()
	med.UpdatedAt = time.Now()
	return s.db.Create(med).Error
}

func (s *Store) GetMedication(id int64) (*Medication, error) {
	var med Medication
	err := s.db.Where("id = ?", id).First(&med).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrMedicationNotFound, "MED_001", fmt.Sprintf("medication %d not found", id))
	}
	if err != nil {
		return nil, err
	}
	s.deserialize(&med)
	return &med, nil
}

func (s *Store) ListMedications() ([]Medication, error) {
	var list []Medication
	err := s.db.Order("created_at ASC, id ASC").Find(&list).Error
	for i := range list {
		s.deserialize(&list[i])
	}
	return list, err
}

func (s *Store) SaveMedication(med *Medication) error {
	med.StartDate = dateutil.DayOf(med.StartDate)
	if med.EndDate != nil {
		end := dateutil.DayOf(*med.EndDate)
		med.EndDate = &end
	}
	s.serialize(med)
	med.UpdatedAt = time.Now()
	return s.db.Save(med).Error
}

// DeleteMedication removes the medication and every dose entry that
// references it, as one transaction.
func (s *Store) DeleteMedication(id int64) error {
	if _, err := s.GetMedication(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("medication_id = ?", id).Delete(&DoseEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Medication{}).Error
	})
}

// DoseEntry operations

// ReplaceEntries swaps the medication's stored entries for the given
// batch as a single logical replace: every prior entry for medicationID
// is deleted before the new ones are inserted, which keeps regeneration
// idempotent. Entries are assigned fresh ids on insert.
func (s *Store) ReplaceEntries(medicationID int64, entries []DoseEntry) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("medication_id = ?", medicationID).Delete(&DoseEntry{}).Error; err != nil {
			return err
		}
		now := time.Now()
		for i := range entries {
			if entries[i].ID == 0 {
				// Allocate on tx: the open write transaction would block a
				// second connection on the counter row.
				entries[i].ID = s.ids.Next(tx)
			}
			entries[i].MedicationID = medicationID
			entries[i].Date = dateutil.DayOf(entries[i].Date)
			entries[i].CreatedAt = now
			entries[i].UpdatedAt = now
			if err := tx.Create(&entries[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteGeneratedEntries removes the medication's generator-produced
// entries, leaving manually logged ones untouched.
func (s *Store) DeleteGeneratedEntries(medicationID int64) error {
	return s.db.Where("medication_id = ? AND is_manual = ?", medicationID, false).Delete(&DoseEntry{}).Error
}

func (s *Store) Schedule() ([]DoseEntry, error) {
	var entries []DoseEntry
	err := s.db.Order("date ASC, time ASC, id ASC").Find(&entries).Error
	return entries, err
}

func (s *Store) EntriesForDate(date time.Time) ([]DoseEntry, error) {
	day := dateutil.DayOf(date)
	var entries []DoseEntry
	err := s.db.Where("date = ?", day).Order("time ASC, id ASC").Find(&entries).Error
	return entries, err
}

func (s *Store) EntriesInRange(start, end time.Time) ([]DoseEntry, error) {
	var entries []DoseEntry
	err := s.db.Where("date >= ? AND date <= ?", dateutil.DayOf(start), dateutil.DayOf(end)).
		Order("date ASC, time ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (s *Store) EntriesForMedication(medicationID int64) ([]DoseEntry, error) {
	var entries []DoseEntry
	err := s.db.Where("medication_id = ?", medicationID).
		Order("date ASC, time ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (s *Store) GetEntry(id int64) (*DoseEntry, error) {
	var entry DoseEntry
	err := s.db.Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrDoseEntryNotFound, "MED_002", fmt.Sprintf("dose entry %d not found", id))
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateEntryStatus mutates a single entry's status by id
func (s *Store) UpdateEntryStatus(id int64, status DoseStatus) error {
	if !status.Valid() {
		return apperrors.Wrap(apperrors.ErrInvalidStatus, "VAL_003", fmt.Sprintf("invalid dose status %q", status))
	}
	res := s.db.Model(&DoseEntry{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.Wrap(apperrors.ErrDoseEntryNotFound, "MED_002", fmt.Sprintf("dose entry %d not found", id))
	}
	return nil
}

// InsertEntry appends a single entry outside the generator's replace
// cycle, allocating its id.
func (s *Store) InsertEntry(entry *DoseEntry) error {
	if entry.ID == 0 {
		entry.ID = s.ids.Next(s.db)
	}
	entry.Date = dateutil.DayOf(entry.Date)
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = time.Now()
	return s.db.Create(entry).Error
}
