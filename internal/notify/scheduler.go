package notify

import (
	"fmt"
	"time"

	"github.com/gmsas95/dosetrack/internal/dateutil"
	"github.com/gmsas95/dosetrack/internal/goals"
	"github.com/gmsas95/dosetrack/internal/meds"
	"github.com/gmsas95/dosetrack/internal/metrics"
	"go.uber.org/zap"
)

// anchor pins a repeating trigger to every day, one weekday, or one day
// of the month. tag feeds the deterministic identifier.
type anchor struct {
	weekday    *int
	dayOfMonth *int
	tag        string
}

// Scheduler arms and cancels reminder triggers for medications and goal
// steps. Every dosing instance gets two triggers: one at the dose time
// and one a fixed lead interval before it.
type Scheduler struct {
	registry   Registry
	preMinutes int
	logger     *zap.Logger
	now        func() time.Time
}

// NewScheduler creates a reminder scheduler. preMinutes is the
// pre-reminder lead interval; values <= 0 fall back to 15.
func NewScheduler(registry Registry, preMinutes int, logger *zap.Logger) *Scheduler {
	if preMinutes <= 0 {
		preMinutes = 15
	}
	return &Scheduler{
		registry:   registry,
		preMinutes: preMinutes,
		logger:     logger,
		now:        time.Now,
	}
}

// ScheduleReminders cancels every trigger belonging to the medication
// and re-arms the current set, so repeated calls converge on the same
// armed triggers instead of accumulating duplicates. Individual arming
// failures are collected, never fatal.
func (s *Scheduler) ScheduleReminders(med *meds.Medication) ScheduleResult {
	var result ScheduleResult

	if err := s.cancelEntity(TypeMedicationReminder, med.ID); err != nil {
		s.logger.Warn("failed to cancel stale medication triggers",
			zap.Int64("medication_id", med.ID), zap.Error(err))
	}

	if !med.ReminderEnabled || med.Frequency == meds.FrequencyAsNeeded {
		return result
	}

	for _, clock := range med.Times {
		hour, minute, err := dateutil.ParseClock(clock)
		if err != nil {
			result.fail(fmt.Sprintf("medication-%d-?-%s", med.ID, clock), err)
			continue
		}

		for _, a := range anchorsFor(med) {
			onTime := Trigger{Hour: hour, Minute: minute, Weekday: a.weekday, DayOfMonth: a.dayOfMonth, Repeats: true}
			s.arm(&result,
				s.medIdentifier(med.ID, a.tag, hour, minute, "ontime"),
				Payload{
					Type:     TypeMedicationReminder,
					EntityID: med.ID,
					Title:    "Medication reminder",
					Body:     doseBody(med),
				},
				onTime,
			)

			pre, preAnchor, ok := s.preTrigger(hour, minute, a)
			if !ok {
				result.fail(
					s.medIdentifier(med.ID, a.tag, hour, minute, s.preSuffix()),
					fmt.Errorf("pre-reminder for day-of-month 1 would cross a month boundary"),
				)
				continue
			}
			s.arm(&result,
				s.medIdentifier(med.ID, preAnchor.tag, pre.Hour, pre.Minute, s.preSuffix()),
				Payload{
					Type:     TypeMedicationReminder,
					EntityID: med.ID,
					Title:    "Upcoming medication",
					Body:     fmt.Sprintf("%s in %d minutes", doseBody(med), s.preMinutes),
				},
				pre,
			)
		}
	}

	return result
}

// CancelReminders removes every armed trigger owned by the medication
func (s *Scheduler) CancelReminders(medicationID int64) error {
	return s.cancelEntity(TypeMedicationReminder, medicationID)
}

// ScheduleGoalStepReminders re-arms one-off reminders for the goal's
// incomplete steps. A trigger is armed only when its instant lies
// strictly in the future; past instants are skipped silently.
func (s *Scheduler) ScheduleGoalStepReminders(goal *goals.Goal) ScheduleResult {
	var result ScheduleResult

	if err := s.cancelEntity(TypeGoalStepReminder, goal.ID); err != nil {
		s.logger.Warn("failed to cancel stale goal triggers",
			zap.Int64("goal_id", goal.ID), zap.Error(err))
	}

	now := s.now()
	for _, step := range goal.Steps {
		if step.Completed || step.StartDate == nil {
			continue
		}

		at := *step.StartDate
		if at.After(now) {
			s.arm(&result,
				s.stepIdentifier(goal.ID, step.ID, at, "ontime"),
				Payload{
					Type:     TypeGoalStepReminder,
					EntityID: goal.ID,
					StepID:   step.ID,
					Title:    goal.Title,
					Body:     step.Title,
				},
				Trigger{At: &at},
			)
		}

		pre := at.Add(-time.Duration(s.preMinutes) * time.Minute)
		if pre.After(now) {
			s.arm(&result,
				s.stepIdentifier(goal.ID, step.ID, at, s.preSuffix()),
				Payload{
					Type:     TypeGoalStepReminder,
					EntityID: goal.ID,
					StepID:   step.ID,
					Title:    goal.Title,
					Body:     fmt.Sprintf("%s in %d minutes", step.Title, s.preMinutes),
				},
				Trigger{At: &pre},
			)
		}
	}

	return result
}

// CancelGoalStepReminders removes every armed trigger owned by the goal
func (s *Scheduler) CancelGoalStepReminders(goalID int64) error {
	return s.cancelEntity(TypeGoalStepReminder, goalID)
}

// Hook adapters: the medication and goal services call these on every
// mutation. Outcomes are logged, never propagated, so a reminder
// problem cannot fail a data write.

func (s *Scheduler) MedicationSaved(med *meds.Medication) {
	result := s.ScheduleReminders(med)
	s.logResult("medication", med.ID, result)
}

func (s *Scheduler) MedicationDeleted(medicationID int64) {
	if err := s.CancelReminders(medicationID); err != nil {
		s.logger.Warn("failed to cancel medication reminders",
			zap.Int64("medication_id", medicationID), zap.Error(err))
	}
}

func (s *Scheduler) GoalSaved(goal *goals.Goal) {
	result := s.ScheduleGoalStepReminders(goal)
	s.logResult("goal", goal.ID, result)
}

func (s *Scheduler) GoalDeleted(goalID int64) {
	if err := s.CancelGoalStepReminders(goalID); err != nil {
		s.logger.Warn("failed to cancel goal reminders",
			zap.Int64("goal_id", goalID), zap.Error(err))
	}
}

// preTrigger derives the lead trigger from an on-time (hour, minute)
// anchor. When subtracting the lead interval crosses midnight the time
// wraps to the previous day: a weekday anchor shifts back one weekday,
// so a dose due Monday 00:05 gets its pre-reminder on Sunday 23:50. A
// day-of-month anchor of 1 cannot be shifted into the previous month
// with a fixed repeating descriptor, reported via ok=false.
func (s *Scheduler) preTrigger(hour, minute int, a anchor) (Trigger, anchor, bool) {
	total := hour*60 + minute - s.preMinutes
	if total >= 0 {
		return Trigger{Hour: total / 60, Minute: total % 60, Weekday: a.weekday, DayOfMonth: a.dayOfMonth, Repeats: true}, a, true
	}

	total += 24 * 60
	shifted := anchor{tag: a.tag}
	if a.weekday != nil {
		prev := (*a.weekday + 6) % 7
		shifted.weekday = &prev
		shifted.tag = fmt.Sprintf("%d", prev)
	}
	if a.dayOfMonth != nil {
		if *a.dayOfMonth <= 1 {
			return Trigger{}, anchor{}, false
		}
		prev := *a.dayOfMonth - 1
		shifted.dayOfMonth = &prev
		shifted.tag = fmt.Sprintf("dom%d", prev)
	}
	return Trigger{Hour: total / 60, Minute: total % 60, Weekday: shifted.weekday, DayOfMonth: shifted.dayOfMonth, Repeats: true}, shifted, true
}

func (s *Scheduler) arm(result *ScheduleResult, identifier string, payload Payload, trigger Trigger) {
	ticketID, err := s.registry.ScheduleTrigger(identifier, payload, trigger)
	if err != nil {
		result.fail(identifier, err)
		return
	}
	next, _ := nextFire(trigger, s.now())
	result.Armed = append(result.Armed, Ticket{
		ID:         ticketID,
		Identifier: identifier,
		Payload:    payload,
		Trigger:    trigger,
		NextFire:   next,
	})
	metrics.TriggersArmed.Inc()
}

// cancelEntity removes every armed ticket whose payload names the given
// owner, matching by payload fields rather than identifier parsing.
func (s *Scheduler) cancelEntity(payloadType string, entityID int64) error {
	tickets, err := s.registry.ListTriggers()
	if err != nil {
		return err
	}
	var firstErr error
	for _, ticket := range tickets {
		if ticket.Payload.Type != payloadType || ticket.Payload.EntityID != entityID {
			continue
		}
		if err := s.registry.CancelTrigger(ticket.Identifier); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scheduler) logResult(entity string, id int64, result ScheduleResult) {
	if len(result.Failed) > 0 {
		s.logger.Warn("some reminder triggers failed to arm",
			zap.String("entity", entity),
			zap.Int64("id", id),
			zap.Int("armed", len(result.Armed)),
			zap.Int("failed", len(result.Failed)),
			zap.Error(result.Failed[0].Err),
		)
		return
	}
	s.logger.Debug("reminders armed",
		zap.String("entity", entity),
		zap.Int64("id", id),
		zap.Int("armed", len(result.Armed)),
	)
}

func (s *Scheduler) preSuffix() string {
	return fmt.Sprintf("pre%d", s.preMinutes)
}

func (s *Scheduler) medIdentifier(medicationID int64, tag string, hour, minute int, suffix string) string {
	return fmt.Sprintf("medication-%d-%s-%s-%s", medicationID, tag, dateutil.FormatClock(hour, minute), suffix)
}

func (s *Scheduler) stepIdentifier(goalID, stepID int64, at time.Time, suffix string) string {
	return fmt.Sprintf("goal-step-%d-%d-%s-%s", goalID, stepID, dateutil.FormatClock(at.Hour(), at.Minute()), suffix)
}

func (r *ScheduleResult) fail(identifier string, err error) {
	r.Failed = append(r.Failed, TriggerError{Identifier: identifier, Err: err})
	metrics.TriggerFailures.Inc()
}

// anchorsFor maps a medication's recurrence to repeating-trigger
// anchors: daily fires every day, weekly once per configured weekday
// (an empty set behaves like daily, matching schedule generation), and
// monthly on the start date's day of month.
func anchorsFor(med *meds.Medication) []anchor {
	switch med.Frequency {
	case meds.FrequencyWeekly:
		if len(med.Weekdays) == 0 {
			return []anchor{{tag: "daily"}}
		}
		anchors := make([]anchor, 0, len(med.Weekdays))
		for _, w := range med.Weekdays {
			weekday := w
			anchors = append(anchors, anchor{weekday: &weekday, tag: fmt.Sprintf("%d", weekday)})
		}
		return anchors
	case meds.FrequencyMonthly:
		dom := dateutil.DayOfMonth(med.StartDate)
		return []anchor{{dayOfMonth: &dom, tag: fmt.Sprintf("dom%d", dom)}}
	default:
		return []anchor{{tag: "daily"}}
	}
}

func doseBody(med *meds.Medication) string {
	if med.Dosage != "" {
		return fmt.Sprintf("Time to take %s (%s)", med.Name, med.Dosage)
	}
	return fmt.Sprintf("Time to take %s", med.Name)
}
