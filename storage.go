package delivery

import "github.com/google/uuid"

// TaskRepository persists scheduled tasks so pending work survives a restart.
// The in-memory scheduler remains the owner of live task state, the repository
// is written through on every transition.
type TaskRepository interface {
	// GetPending returns every non-terminal task: pending ones plus any left
	// as dispatching by a process that died mid-attempt. The scheduler resets
	// the latter to pending when it restores them.
	GetPending() ([]Task, error)

	Create(task *Task) error
	Update(task *Task) error
}

// RecordRepository is the append-only delivery log. Append must never rewrite
// history; a failed append is fatal to the dispatcher since log integrity can
// no longer be assumed.
type RecordRepository interface {
	Append(record *Record) error
	Matching(criteria RecordCriteria) ([]Record, int, error)
}

type ContactRepository interface {
	Get(id uuid.UUID) (Contact, error)
	GetAll() ([]Contact, error)

	Create(contact *Contact) error
	Update(contact *Contact) error
	Delete(contact *Contact) error
}

type TemplateRepository interface {
	Get(id uuid.UUID) (Template, error)
	GetAll() ([]Template, error)

	Create(template *Template) error
	Update(template *Template) error
	Delete(template *Template) error
}
