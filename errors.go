package delivery

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	TaskNotFoundErr    = errors.New("The delivery task was not found")
	TaskInFlightErr    = errors.New("The delivery task has already been claimed for dispatch")
	TaskNotPendingErr  = errors.New("The delivery task is no longer pending")
	ContactNotFoundErr = errors.New("The contact was not found")

	TemplateNotFoundErr = errors.New("The message template was not found")
)

// ValidationError is returned when a task or contact is rejected before it
// reaches the scheduler, nothing has been enqueued or persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
