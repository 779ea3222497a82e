package goals

import (
	"time"
)

// Goal is a long-running objective made of ordered steps
type Goal struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	TargetDate *time.Time `json:"target_date,omitempty"`
	Completed  bool       `json:"completed"`

	Steps []GoalStep `json:"steps" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GoalStep is one scheduled step of a goal. Reminders are armed only
// for incomplete steps whose start date resolves to a future instant.
type GoalStep struct {
	ID     int64 `json:"id" gorm:"primaryKey"`
	GoalID int64 `json:"goal_id" gorm:"index"`

	Title     string     `json:"title"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Completed bool       `json:"completed"`
	Order     int        `json:"order" gorm:"column:step_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
