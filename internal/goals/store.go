package goals

import (
	"errors"
	"fmt"
	"time"

	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"gorm.io/gorm"
)

// Allocator hands out entity ids; satisfied by the shared counter
// allocator the medication store uses. Allocations made inside a
// transaction must pass the transaction handle.
type Allocator interface {
	Next(db *gorm.DB) int64
}

// Store handles goal and goal-step persistence
type Store struct {
	db  *gorm.DB
	ids Allocator
}

// NewStore creates a new goal store
func NewStore(db *gorm.DB, ids Allocator) (*Store, error) {
	if err := db.AutoMigrate(&Goal{}, &GoalStep{}); err != nil {
		return nil, fmt.Errorf("failed to migrate goal schemas: %w", err)
	}
	return &Store{db: db, ids: ids}, nil
}

// CreateGoal stores the goal and its steps, allocating ids for both
func (s *Store) CreateGoal(goal *Goal) error {
	if goal.ID == 0 {
		goal.ID = s.ids.Next(s.db)
	}
	now := time.Now()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	return s.db.Transaction(func(tx *gorm.DB) error {
		steps := goal.Steps
		goal.Steps = nil
		if err := tx.Create(goal).Error; err != nil {
			return err
		}
		goal.Steps = steps
		for i := range goal.Steps {
			if goal.Steps[i].ID == 0 {
				goal.Steps[i].ID = s.ids.Next(tx)
			}
			goal.Steps[i].GoalID = goal.ID
			goal.Steps[i].Order = i
			goal.Steps[i].CreatedAt = now
			goal.Steps[i].UpdatedAt = now
			if err := tx.Create(&goal.Steps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGoal returns a goal with its steps in order
func (s *Store) GetGoal(id int64) (*Goal, error) {
	var goal Goal
	err := s.db.Where("id = ?", id).First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrGoalNotFound, "GOAL_001", fmt.Sprintf("goal %d not found", id))
	}
	if err != nil {
		return nil, err
	}
	steps, err := s.StepsForGoal(id)
	if err != nil {
		return nil, err
	}
	goal.Steps = steps
	return &goal, nil
}

// ListGoals returns all goals with their steps
func (s *Store) ListGoals() ([]Goal, error) {
	var goals []Goal
	if err := s.db.Order("created_at ASC, id ASC").Find(&goals).Error; err != nil {
		return nil, err
	}
	for i := range goals {
		steps, err := s.StepsForGoal(goals[i].ID)
		if err != nil {
			return nil, err
		}
		goals[i].Steps = steps
	}
	return goals, nil
}

// SaveGoal updates the goal row and replaces its step list
func (s *Store) SaveGoal(goal *Goal) error {
	goal.UpdatedAt = time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		steps := goal.Steps
		goal.Steps = nil
		err := tx.Save(goal).Error
		goal.Steps = steps
		if err != nil {
			return err
		}
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&GoalStep{}).Error; err != nil {
			return err
		}
		now := time.Now()
		for i := range goal.Steps {
			if goal.Steps[i].ID == 0 {
				goal.Steps[i].ID = s.ids.Next(tx)
			}
			goal.Steps[i].GoalID = goal.ID
			goal.Steps[i].Order = i
			goal.Steps[i].UpdatedAt = now
			if goal.Steps[i].CreatedAt.IsZero() {
				goal.Steps[i].CreatedAt = now
			}
			if err := tx.Create(&goal.Steps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteGoal removes the goal and all its steps
func (s *Store) DeleteGoal(id int64) error {
	if _, err := s.GetGoal(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("goal_id = ?", id).Delete(&GoalStep{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Goal{}).Error
	})
}

// StepsForGoal returns a goal's steps ordered by position
func (s *Store) StepsForGoal(goalID int64) ([]GoalStep, error) {
	var steps []GoalStep
	err := s.db.Where("goal_id = ?", goalID).Order("step_order ASC, id ASC").Find(&steps).Error
	return steps, err
}

// SetStepCompleted flips one step's completed flag
func (s *Store) SetStepCompleted(stepID int64, completed bool) (*GoalStep, error) {
	var step GoalStep
	err := s.db.Where("id = ?", stepID).First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrGoalNotFound, "GOAL_001", fmt.Sprintf("goal step %d not found", stepID))
	}
	if err != nil {
		return nil, err
	}
	step.Completed = completed
	step.UpdatedAt = time.Now()
	if err := s.db.Save(&step).Error; err != nil {
		return nil, err
	}
	return &step, nil
}
