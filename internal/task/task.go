// Package task defines the task model and the pure computations over it:
// recurrence scheduling, manual ordering, and the filter/sort pipeline.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Frequency is the repeat cadence of a recurrence rule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// RecurrenceRule describes a repeating schedule for a task.
// DaysOfWeek is only meaningful for weekly rules, DayOfMonth for monthly.
type RecurrenceRule struct {
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval"` // repeat every N units, >= 1
	DaysOfWeek []int      `json:"days_of_week,omitempty"`
	DayOfMonth int        `json:"day_of_month,omitempty"`
	NextDue    *time.Time `json:"next_due,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// Task is a unit of repair/claim work assigned to one owner.
// AIPriority and AISuggestion are filled in by the estimator; both may be
// absent until the back-fill has run.
type Task struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Status         Status          `json:"status"`
	AssignedTo     string          `json:"assigned_to"` // owner id, immutable after creation
	Order          int64           `json:"order"`       // manual sort position
	Dealership     string          `json:"dealership,omitempty"`
	InsuranceClaim string          `json:"insurance_claim,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Deadline       *time.Time      `json:"deadline,omitempty"`
	AIPriority     int             `json:"ai_priority,omitempty"` // 0 = not yet estimated, else 1..10
	AISuggestion   string          `json:"ai_suggestion,omitempty"`
	ReminderSent   bool            `json:"reminder_sent,omitempty"` // latched, never reset
	Recurrence     *RecurrenceRule `json:"recurrence,omitempty"`
}

// HasPriority reports whether the estimator has assigned a priority.
func (t Task) HasPriority() bool { return t.AIPriority > 0 }

// ClampPriority forces a raw priority into the valid [1,10] range.
func ClampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// Patch is a field-level update to a task. Nil fields are left untouched,
// so concurrent writers only collide on the fields they both set.
type Patch struct {
	Title        *string
	Description  *string
	Status       *Status
	Order        *int64
	Dealership   *string
	Insurance    *string
	Deadline     *time.Time
	AIPriority   *int
	AISuggestion *string
	ReminderSent *bool
	Recurrence   *RecurrenceRule
}
