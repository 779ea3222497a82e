package goals

import (
	"time"

	"github.com/gmsas95/dosetrack/internal/dateutil"
	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"go.uber.org/zap"
)

// ReminderHook receives goal lifecycle events so step reminders can be
// re-armed or cancelled. Best-effort, same contract as the medication
// hook.
type ReminderHook interface {
	GoalSaved(goal *Goal)
	GoalDeleted(goalID int64)
}

// NopReminderHook ignores all events
type NopReminderHook struct{}

func (NopReminderHook) GoalSaved(*Goal)   {}
func (NopReminderHook) GoalDeleted(int64) {}

// Service orchestrates goal mutations and keeps step reminders in sync
type Service struct {
	store     *Store
	reminders ReminderHook
	logger    *zap.Logger
}

// NewService creates a goal service
func NewService(store *Store, reminders ReminderHook, logger *zap.Logger) *Service {
	if reminders == nil {
		reminders = NopReminderHook{}
	}
	return &Service{store: store, reminders: reminders, logger: logger}
}

// StepInput is one step of a goal submission. StartAt is an optional
// RFC 3339 instant or a bare calendar date (midnight UTC).
type StepInput struct {
	Title     string `json:"title"`
	StartAt   string `json:"start_at"`
	Completed bool   `json:"completed"`
}

// GoalInput carries the fields of a goal submission
type GoalInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	TargetDate  string      `json:"target_date"`
	Steps       []StepInput `json:"steps"`
}

// CreateGoal validates and stores a goal, then arms reminders for its
// future incomplete steps.
func (s *Service) CreateGoal(in GoalInput) (*Goal, error) {
	goal, err := s.buildGoal(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateGoal(goal); err != nil {
		return nil, err
	}
	s.reminders.GoalSaved(goal)
	s.logger.Info("goal created",
		zap.Int64("goal_id", goal.ID),
		zap.Int("steps", len(goal.Steps)),
	)
	return goal, nil
}

// UpdateGoal replaces the goal's fields and step list, then re-arms
// reminders.
func (s *Service) UpdateGoal(id int64, in GoalInput) (*Goal, error) {
	existing, err := s.store.GetGoal(id)
	if err != nil {
		return nil, err
	}
	goal, err := s.buildGoal(in)
	if err != nil {
		return nil, err
	}
	goal.ID = existing.ID
	goal.CreatedAt = existing.CreatedAt
	goal.Completed = existing.Completed
	if err := s.store.SaveGoal(goal); err != nil {
		return nil, err
	}
	s.reminders.GoalSaved(goal)
	s.logger.Info("goal updated", zap.Int64("goal_id", goal.ID))
	return goal, nil
}

// DeleteGoal removes the goal, its steps and its armed reminders
func (s *Service) DeleteGoal(id int64) error {
	if err := s.store.DeleteGoal(id); err != nil {
		return err
	}
	s.reminders.GoalDeleted(id)
	s.logger.Info("goal deleted", zap.Int64("goal_id", id))
	return nil
}

// Goals lists all goals with their steps
func (s *Service) Goals() ([]Goal, error) {
	return s.store.ListGoals()
}

// Goal returns one goal by id
func (s *Service) Goal(id int64) (*Goal, error) {
	return s.store.GetGoal(id)
}

// CompleteStep marks a step done (or not) and re-arms the goal's
// reminders so completed steps stop firing.
func (s *Service) CompleteStep(stepID int64, completed bool) (*GoalStep, error) {
	step, err := s.store.SetStepCompleted(stepID, completed)
	if err != nil {
		return nil, err
	}
	goal, err := s.store.GetGoal(step.GoalID)
	if err != nil {
		return nil, err
	}
	s.reminders.GoalSaved(goal)
	return step, nil
}

func (s *Service) buildGoal(in GoalInput) (*Goal, error) {
	if in.Title == "" {
		return nil, apperrors.New("GEN_002", "goal title is required")
	}

	goal := &Goal{
		Title:       in.Title,
		Description: in.Description,
	}

	if in.TargetDate != "" {
		target, err := dateutil.ParseDate(in.TargetDate)
		if err != nil {
			return nil, err
		}
		goal.TargetDate = &target
	}

	for i, stepIn := range in.Steps {
		if stepIn.Title == "" {
			return nil, apperrors.New("GEN_002", "step title is required")
		}
		step := GoalStep{
			Title:     stepIn.Title,
			Completed: stepIn.Completed,
			Order:     i,
		}
		if stepIn.StartAt != "" {
			at, err := parseInstant(stepIn.StartAt)
			if err != nil {
				return nil, err
			}
			step.StartDate = &at
		}
		goal.Steps = append(goal.Steps, step)
	}

	return goal, nil
}

// parseInstant accepts RFC 3339 or a bare calendar date
func parseInstant(value string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, value); err == nil {
		return at, nil
	}
	at, err := dateutil.ParseDate(value)
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrInvalidDate, "VAL_001", "invalid step start date: "+value)
	}
	return at, nil
}
