package delivery

import (
	"time"

	"github.com/google/uuid"
)

type Priority uint

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "low":
		return PriorityLow, true
	case "normal", "":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	case "urgent":
		return PriorityUrgent, true
	}

	return PriorityNormal, false
}

type ScheduleKind uint

const (
	ScheduleOneShot ScheduleKind = iota
	ScheduleInterval
	ScheduleCalendar
)

type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskDispatching TaskStatus = "dispatching"
	TaskSent        TaskStatus = "sent"
	TaskFailed      TaskStatus = "failed"
	TaskCancelled   TaskStatus = "cancelled"
)

// Terminal reports whether no further transition can happen to the status.
func (s TaskStatus) Terminal() bool {
	return s == TaskSent || s == TaskFailed || s == TaskCancelled
}

// Task is a single scheduled delivery. A recurring task never mutates itself
// into the future: each successful dispatch of a recurring task spawns a fresh
// pending task for the next occurrence and the dispatched one stays sent.
type Task struct {
	Uuid uuid.UUID `json:"uuid"`

	Channel   Channel  `json:"channel"`
	Recipient string   `json:"recipient"`
	Content   string   `json:"content"`
	Priority  Priority `json:"priority"`

	Schedule   ScheduleKind `json:"schedule"`
	DueAt      time.Time    `json:"dueAt"`
	Recurrence *Recurrence  `json:"recurrence,omitempty"`

	Status    TaskStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"lastError,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (t *Task) validate(now time.Time, grace time.Duration) error {
	if !t.Channel.Valid() {
		return ValidationError{Field: "channel", Reason: "unknown channel kind"}
	}

	if t.Recipient == "" {
		return ValidationError{Field: "recipient", Reason: "must not be empty"}
	}

	if t.Content == "" {
		return ValidationError{Field: "content", Reason: "must not be empty"}
	}

	switch t.Schedule {
	case ScheduleOneShot:
		if t.DueAt.Before(now.Add(-grace)) {
			return ValidationError{Field: "dueAt", Reason: "due time is in the past"}
		}

	case ScheduleInterval, ScheduleCalendar:
		if t.Recurrence == nil {
			return ValidationError{Field: "recurrence", Reason: "required for recurring tasks"}
		}

		if err := t.Recurrence.validate(t.Schedule); err != nil {
			return err
		}

	default:
		return ValidationError{Field: "schedule", Reason: "unknown schedule kind"}
	}

	return nil
}
