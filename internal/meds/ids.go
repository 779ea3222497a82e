package meds

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Allocator hands out entity ids. Medications and dose entries share one
// id space. Callers pass the handle they are writing on, so allocations
// inside a transaction reuse its connection instead of waiting on a
// second one from the pool.
type Allocator interface {
	Next(db *gorm.DB) int64
}

// idCounter is the single persisted row holding the last allocated id
type idCounter struct {
	ID     uint  `gorm:"primaryKey"`
	LastID int64 `gorm:"column:last_id"`
}

func (idCounter) TableName() string {
	return "id_counters"
}

// CounterAllocator allocates monotonically increasing ids from a counter
// row persisted alongside the domain tables. When the counter cannot be
// read it degrades to a timestamp-derived id instead of failing the
// caller's operation; two degraded allocations in the same millisecond
// can collide, accepted because the fallback only runs on storage failure.
type CounterAllocator struct {
	logger *zap.Logger
	mu     sync.Mutex
}

// NewCounterAllocator creates the allocator and its backing table
func NewCounterAllocator(db *gorm.DB, logger *zap.Logger) (*CounterAllocator, error) {
	if err := db.AutoMigrate(&idCounter{}); err != nil {
		return nil, err
	}
	return &CounterAllocator{logger: logger}, nil
}

// Next returns the next id in the shared sequence, reading and writing
// the counter row on the given handle.
func (a *CounterAllocator) Next(db *gorm.DB) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var counter idCounter
	if err := db.Where(idCounter{ID: 1}).FirstOrCreate(&counter).Error; err != nil {
		fallback := time.Now().UnixMilli()
		a.logger.Warn("id counter unavailable, using timestamp id",
			zap.Int64("fallback_id", fallback),
			zap.Error(err),
		)
		return fallback
	}

	counter.LastID++
	if err := db.Save(&counter).Error; err != nil {
		fallback := time.Now().UnixMilli()
		a.logger.Warn("id counter write failed, using timestamp id",
			zap.Int64("fallback_id", fallback),
			zap.Error(err),
		)
		return fallback
	}

	return counter.LastID
}
