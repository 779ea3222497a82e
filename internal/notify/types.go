package notify

import (
	"fmt"
	"time"
)

// Payload types carried by notification tickets. Cancellation and
// foreground filtering key off the discriminator plus the owning
// entity id.
const (
	TypeMedicationReminder = "medication-reminder"
	TypeGoalStepReminder   = "goal-step-reminder"
)

// Payload is the notification content plus the routing fields needed to
// cancel a ticket by owner.
type Payload struct {
	Type     string `json:"type"`
	EntityID int64  `json:"entity_id"`
	StepID   int64  `json:"step_id,omitempty"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Trigger describes when a ticket fires: either a one-off absolute
// instant, or a repeating (hour, minute) anchored to every day, one
// weekday, or one day of the month.
type Trigger struct {
	At *time.Time `json:"at,omitempty"`

	Hour       int  `json:"hour,omitempty"`
	Minute     int  `json:"minute,omitempty"`
	Weekday    *int `json:"weekday,omitempty"`      // 0=Sunday..6=Saturday
	DayOfMonth *int `json:"day_of_month,omitempty"` // 1..31
	Repeats    bool `json:"repeats,omitempty"`
}

// CronSpec renders a repeating trigger as a five-field cron expression
func (t Trigger) CronSpec() string {
	dom, dow := "*", "*"
	if t.DayOfMonth != nil {
		dom = fmt.Sprintf("%d", *t.DayOfMonth)
	}
	if t.Weekday != nil {
		dow = fmt.Sprintf("%d", *t.Weekday)
	}
	return fmt.Sprintf("%d %d %s * %s", t.Minute, t.Hour, dom, dow)
}

// Ticket is one armed notification: a stable identifier, its payload,
// its trigger and the next instant it is due.
type Ticket struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Payload    Payload   `json:"payload"`
	Trigger    Trigger   `json:"trigger"`
	NextFire   time.Time `json:"next_fire"`
	CreatedAt  time.Time `json:"created_at"`
}

// TriggerError records one trigger that could not be armed
type TriggerError struct {
	Identifier string `json:"identifier"`
	Err        error  `json:"-"`
}

func (e TriggerError) Error() string {
	return fmt.Sprintf("trigger %s: %v", e.Identifier, e.Err)
}

// ScheduleResult is the batch outcome of arming an entity's triggers.
// Arming is best-effort: individual failures are collected here instead
// of aborting the batch, so callers can inspect partial success.
type ScheduleResult struct {
	Armed  []Ticket
	Failed []TriggerError
}

// Notification is a fired ticket on its way to delivery channels
type Notification struct {
	Payload  Payload   `json:"payload"`
	FiredAt  time.Time `json:"fired_at"`
	TicketID string    `json:"ticket_id"`
}
