package meds

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/gmsas95/dosetrack/internal/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A pooled :memory: handle gives every connection its own database.
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

type recordingHook struct {
	saved   []int64
	deleted []int64
}

func (r *recordingHook) MedicationSaved(med *Medication) { r.saved = append(r.saved, med.ID) }
func (r *recordingHook) MedicationDeleted(id int64)      { r.deleted = append(r.deleted, id) }

func setupTestService(t *testing.T) (*Service, *Store, *recordingHook) {
	db := setupTestDB(t)
	ids, err := NewCounterAllocator(db, zap.NewNop())
	require.NoError(t, err)
	store, err := NewStore(db, ids)
	require.NoError(t, err)
	hook := &recordingHook{}
	svc := NewService(store, NewGenerator(365), hook, zap.NewNop())
	return svc, store, hook
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsDosingDay(t *testing.T) {
	monday := day(2024, time.January, 1) // 2024-01-01 is a Monday
	sunday := day(2024, time.January, 7)

	tests := []struct {
		name string
		med  Medication
		date time.Time
		want bool
	}{
		{"daily always", Medication{Frequency: FrequencyDaily}, sunday, true},
		{"weekly matching weekday", Medication{Frequency: FrequencyWeekly, Weekdays: []int{1}}, monday, true},
		{"weekly non-matching weekday", Medication{Frequency: FrequencyWeekly, Weekdays: []int{1}}, sunday, false},
		{"weekly empty set behaves daily", Medication{Frequency: FrequencyWeekly}, sunday, true},
		{"monthly matching day", Medication{Frequency: FrequencyMonthly, StartDate: day(2024, time.January, 15)}, day(2024, time.March, 15), true},
		{"monthly other day", Medication{Frequency: FrequencyMonthly, StartDate: day(2024, time.January, 15)}, day(2024, time.March, 16), false},
		{"as-needed never", Medication{Frequency: FrequencyAsNeeded}, monday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDosingDay(&tt.med, tt.date))
		})
	}
}

func TestGeneratorDaily(t *testing.T) {
	end := day(2024, time.January, 3)
	med := &Medication{
		ID:        7,
		Frequency: FrequencyDaily,
		Times:     []string{"08:00 AM"},
		StartDate: day(2024, time.January, 1),
		EndDate:   &end,
	}

	entries := NewGenerator(365).Expand(med)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(7), e.MedicationID)
		assert.Equal(t, day(2024, time.January, 1+i), e.Date)
		assert.Equal(t, "08:00 AM", e.Time)
		assert.Equal(t, StatusPending, e.Status)
	}
}

func TestGeneratorWeekly(t *testing.T) {
	end := day(2024, time.January, 7)
	med := &Medication{
		Frequency: FrequencyWeekly,
		Weekdays:  []int{1, 3}, // Monday, Wednesday
		Times:     []string{"09:00"},
		StartDate: day(2024, time.January, 1),
		EndDate:   &end,
	}

	entries := NewGenerator(365).Expand(med)
	require.Len(t, entries, 2)
	assert.Equal(t, day(2024, time.January, 1), entries[0].Date)
	assert.Equal(t, day(2024, time.January, 3), entries[1].Date)
}

func TestGeneratorMonthlyShortMonths(t *testing.T) {
	// Started on the 31st: February and April simply have no dosing day.
	end := day(2024, time.April, 30)
	med := &Medication{
		Frequency: FrequencyMonthly,
		Times:     []string{"10:00"},
		StartDate: day(2024, time.January, 31),
		EndDate:   &end,
	}

	entries := NewGenerator(365).Expand(med)
	require.Len(t, entries, 2)
	assert.Equal(t, day(2024, time.January, 31), entries[0].Date)
	assert.Equal(t, day(2024, time.March, 31), entries[1].Date)
}

func TestGeneratorEdgeCases(t *testing.T) {
	end := day(2024, time.January, 1)
	inverted := &Medication{
		Frequency: FrequencyDaily,
		Times:     []string{"08:00"},
		StartDate: day(2024, time.February, 1),
		EndDate:   &end,
	}
	assert.Empty(t, NewGenerator(365).Expand(inverted))

	asNeeded := &Medication{
		Frequency: FrequencyAsNeeded,
		Times:     []string{"08:00"},
		StartDate: day(2024, time.January, 1),
	}
	assert.Empty(t, NewGenerator(365).Expand(asNeeded))

	noTimes := &Medication{
		Frequency: FrequencyDaily,
		StartDate: day(2024, time.January, 1),
		EndDate:   &end,
	}
	assert.Empty(t, NewGenerator(365).Expand(noTimes))
}

func TestGeneratorHorizonDefault(t *testing.T) {
	med := &Medication{
		Frequency: FrequencyDaily,
		Times:     []string{"08:00"},
		StartDate: day(2024, time.January, 1),
	}

	// No end date: one entry per day from start through start+365.
	entries := NewGenerator(365).Expand(med)
	assert.Len(t, entries, 366)
}

func TestCreateMedicationGeneratesSchedule(t *testing.T) {
	svc, store, hook := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:            "Lisinopril",
		Dosage:          "10mg",
		Frequency:       FrequencyDaily,
		Times:           []string{"08:00 AM", "08:00 PM"},
		StartDate:       "2024-01-01",
		EndDate:         "2024-01-03",
		ReminderEnabled: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, med.ID)

	entries, err := store.EntriesForMedication(med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 6)
	for _, e := range entries {
		assert.Equal(t, StatusPending, e.Status)
		assert.NotZero(t, e.ID)
	}

	assert.Equal(t, []int64{med.ID}, hook.saved)
}

func TestRegenerationReplacesEntries(t *testing.T) {
	svc, store, _ := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Metformin",
		Frequency: FrequencyDaily,
		Times:     []string{"08:00"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-05",
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(mustFirstEntry(t, store, med.ID).ID, StatusTaken))
	_, err = svc.AddManualEntry(med.ID, "2024-01-02", "12:00", StatusTaken)
	require.NoError(t, err)

	// Editing the medication regenerates from scratch: the taken status
	// and the manual entry do not survive, and the count reflects the
	// new times.
	times := []string{"08:00", "20:00"}
	_, err = svc.UpdateMedication(med.ID, MedicationUpdate{Times: &times})
	require.NoError(t, err)

	entries, err := store.EntriesForMedication(med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for _, e := range entries {
		assert.Equal(t, StatusPending, e.Status)
		assert.False(t, e.IsManual)
	}

	// Running the same update again yields the same final set size.
	_, err = svc.UpdateMedication(med.ID, MedicationUpdate{Times: &times})
	require.NoError(t, err)
	entries, err = store.EntriesForMedication(med.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func mustFirstEntry(t *testing.T, store *Store, medicationID int64) DoseEntry {
	t.Helper()
	entries, err := store.EntriesForMedication(medicationID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0]
}

func TestUpdateStatus(t *testing.T) {
	svc, store, _ := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Aspirin",
		Frequency: FrequencyDaily,
		Times:     []string{"09:00"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-01",
	})
	require.NoError(t, err)

	entry := mustFirstEntry(t, store, med.ID)
	require.NoError(t, svc.UpdateStatus(entry.ID, StatusTaken))

	got, err := store.GetEntry(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusTaken, got.Status)

	err = svc.UpdateStatus(99999, StatusTaken)
	assert.True(t, errors.Is(err, apperrors.ErrDoseEntryNotFound))

	err = svc.UpdateStatus(entry.ID, DoseStatus("eaten"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidStatus))
}

func TestDeleteMedicationCascades(t *testing.T) {
	svc, store, hook := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Atorvastatin",
		Frequency: FrequencyDaily,
		Times:     []string{"21:00"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-10",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMedication(med.ID))

	_, err = svc.Medication(med.ID)
	assert.True(t, errors.Is(err, apperrors.ErrMedicationNotFound))

	entries, err := store.EntriesForMedication(med.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, []int64{med.ID}, hook.deleted)

	err = svc.DeleteMedication(med.ID)
	assert.True(t, errors.Is(err, apperrors.ErrMedicationNotFound))
}

func TestAsNeededManualEntries(t *testing.T) {
	svc, store, _ := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Ibuprofen",
		Frequency: FrequencyAsNeeded,
		StartDate: "2024-01-01",
	})
	require.NoError(t, err)

	entries, err := store.EntriesForMedication(med.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entry, err := svc.AddManualEntry(med.ID, "2024-01-02", "14:30", StatusTaken)
	require.NoError(t, err)
	assert.True(t, entry.IsManual)
	assert.Equal(t, StatusTaken, entry.Status)

	// Editing an as-needed medication must not wipe manual history.
	name := "Ibuprofen 400mg"
	_, err = svc.UpdateMedication(med.ID, MedicationUpdate{Name: &name})
	require.NoError(t, err)

	entries, err = store.EntriesForMedication(med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}

func TestSwitchToAsNeededClearsGeneratedEntries(t *testing.T) {
	svc, store, _ := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Prednisone",
		Frequency: FrequencyDaily,
		Times:     []string{"08:00"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-05",
	})
	require.NoError(t, err)

	manual, err := svc.AddManualEntry(med.ID, "2024-01-03", "16:00", StatusTaken)
	require.NoError(t, err)

	// Dropping to as-needed empties the schedule: the five generated
	// entries go away, the manual one stays.
	freq := FrequencyAsNeeded
	_, err = svc.UpdateMedication(med.ID, MedicationUpdate{Frequency: &freq})
	require.NoError(t, err)

	entries, err := store.EntriesForMedication(med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, manual.ID, entries[0].ID)
	assert.True(t, entries[0].IsManual)
}

func TestAddManualEntryValidation(t *testing.T) {
	svc, _, _ := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Ibuprofen",
		Frequency: FrequencyAsNeeded,
		StartDate: "2024-01-01",
	})
	require.NoError(t, err)

	_, err = svc.AddManualEntry(99999, "2024-01-02", "14:30", StatusTaken)
	assert.True(t, errors.Is(err, apperrors.ErrMedicationNotFound))

	_, err = svc.AddManualEntry(med.ID, "02/01/2024", "14:30", StatusTaken)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidDate))

	_, err = svc.AddManualEntry(med.ID, "2024-01-02", "25:00", StatusTaken)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidClockTime))

	entry, err := svc.AddManualEntry(med.ID, "2024-01-02", "14:30", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, entry.Status)
}

func TestCreateMedicationValidation(t *testing.T) {
	svc, _, _ := setupTestService(t)

	tests := []struct {
		name     string
		input    MedicationInput
		sentinel error
	}{
		{
			"missing start date",
			MedicationInput{Name: "X", Frequency: FrequencyDaily, Times: []string{"08:00"}},
			apperrors.ErrInvalidDate,
		},
		{
			"invalid frequency",
			MedicationInput{Name: "X", Frequency: "hourly", Times: []string{"08:00"}, StartDate: "2024-01-01"},
			apperrors.ErrInvalidFrequency,
		},
		{
			"no times for scheduled medication",
			MedicationInput{Name: "X", Frequency: FrequencyDaily, StartDate: "2024-01-01"},
			apperrors.ErrEmptyTimes,
		},
		{
			"malformed time",
			MedicationInput{Name: "X", Frequency: FrequencyDaily, Times: []string{"8 o'clock"}, StartDate: "2024-01-01"},
			apperrors.ErrInvalidClockTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateMedication(tt.input)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}

	_, err := svc.CreateMedication(MedicationInput{
		Frequency: FrequencyDaily, Times: []string{"08:00"}, StartDate: "2024-01-01",
	})
	assert.Error(t, err, "name is required")

	_, err = svc.CreateMedication(MedicationInput{
		Name: "X", Frequency: FrequencyWeekly, Weekdays: []int{7},
		Times: []string{"08:00"}, StartDate: "2024-01-01",
	})
	assert.Error(t, err, "weekday out of range")
}

func TestFrequencyDefaultsToDaily(t *testing.T) {
	svc, _, _ := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Vitamin D",
		Times:     []string{"08:00"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, FrequencyDaily, med.Frequency)
}

func TestMedicationsForDate(t *testing.T) {
	svc, _, _ := setupTestService(t)

	med, err := svc.CreateMedication(MedicationInput{
		Name:      "Lisinopril",
		Dosage:    "10mg",
		Frequency: FrequencyDaily,
		Times:     []string{"08:00", "20:00"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-03",
	})
	require.NoError(t, err)

	doses, err := svc.MedicationsForDate(day(2024, time.January, 2))
	require.NoError(t, err)
	require.Len(t, doses, 2)
	assert.Equal(t, "Lisinopril", doses[0].Name)
	assert.Equal(t, "10mg", doses[0].Dosage)
	assert.Equal(t, med.ID, doses[0].MedicationID)
	assert.Equal(t, "08:00", doses[0].Time)
	assert.Equal(t, "20:00", doses[1].Time)

	doses, err = svc.MedicationsForDate(day(2024, time.February, 1))
	require.NoError(t, err)
	assert.Empty(t, doses)
}

func TestMedicationRoundTrip(t *testing.T) {
	_, store, _ := setupTestService(t)

	end := day(2024, time.June, 30)
	med := &Medication{
		Name:      "Levothyroxine",
		Frequency: FrequencyWeekly,
		Times:     []string{"07:00 AM"},
		Weekdays:  []int{1, 4},
		StartDate: day(2024, time.January, 1),
		EndDate:   &end,
	}
	require.NoError(t, store.CreateMedication(med))

	got, err := store.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"07:00 AM"}, got.Times)
	assert.Equal(t, []int{1, 4}, got.Weekdays)
	assert.True(t, med.StartDate.Equal(got.StartDate))
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))
}

func TestCounterAllocatorMonotonic(t *testing.T) {
	db := setupTestDB(t)
	ids, err := NewCounterAllocator(db, zap.NewNop())
	require.NoError(t, err)

	prev := ids.Next(db)
	for i := 0; i < 10; i++ {
		next := ids.Next(db)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestCounterAllocatorInsideTransaction(t *testing.T) {
	db := setupTestDB(t)
	ids, err := NewCounterAllocator(db, zap.NewNop())
	require.NoError(t, err)

	before := ids.Next(db)

	// The pool above holds a single connection, so an allocation that
	// went back to the root handle while this transaction is open would
	// block forever. Allocating on tx must keep the sequence moving.
	var inTx []int64
	err = db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 5; i++ {
			inTx = append(inTx, ids.Next(tx))
		}
		return nil
	})
	require.NoError(t, err)

	prev := before
	for _, id := range inTx {
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Greater(t, ids.Next(db), prev)
}

func TestCounterAllocatorFallback(t *testing.T) {
	db := setupTestDB(t)
	ids, err := NewCounterAllocator(db, zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// With the counter unreachable the allocator degrades to a
	// timestamp-derived id rather than failing.
	id := ids.Next(db)
	assert.Greater(t, id, int64(1_600_000_000_000))
}
