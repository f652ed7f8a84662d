package delivery

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// Record is one dispatch attempt. Exactly one record is appended per sender
// invocation, deferrals caused by rate limiting write nothing. Records are
// never mutated or deleted.
type Record struct {
	Uuid     uuid.UUID `json:"uuid"`
	TaskUuid uuid.UUID `json:"taskUuid"`

	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Content   string  `json:"content"`

	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// RecordCriteria filters the delivery history. Zero values match everything.
type RecordCriteria struct {
	Outcome  Outcome
	Channel  Channel
	TaskUuid uuid.UUID

	After  time.Time
	Before time.Time

	Offset int
	Limit  int
}

func (c RecordCriteria) matches(record Record) bool {
	if c.Outcome != "" && record.Outcome != c.Outcome {
		return false
	}

	if c.Channel != "" && record.Channel != c.Channel {
		return false
	}

	if c.TaskUuid != uuid.Nil && record.TaskUuid != c.TaskUuid {
		return false
	}

	if !c.After.IsZero() && record.CreatedAt.Before(c.After) {
		return false
	}

	if !c.Before.IsZero() && record.CreatedAt.After(c.Before) {
		return false
	}

	return true
}
