package delivery

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Scheduler owns the set of live delivery tasks. It is the only writer of
// task status and attempt counts; the dispatcher drives transitions through
// the methods below so the pending→dispatching claim stays atomic even with
// several dispatch workers polling at once.
type Scheduler struct {
	mu sync.Mutex

	logger    logrus.FieldLogger
	repo      TaskRepository
	grace     time.Duration
	retention time.Duration

	tasks map[uuid.UUID]*Task
}

// NewScheduler creates a scheduler. The repository may be nil for purely
// in-memory operation; grace extends how far in the past a one-shot task's
// due time may lie before Enqueue rejects it. Terminal tasks are evicted from
// the live set once they have been finished for longer than retention, zero
// retention keeps them forever.
func NewScheduler(repo TaskRepository, grace, retention time.Duration, logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scheduler{
		logger:    logger,
		repo:      repo,
		grace:     grace,
		retention: retention,
		tasks:     map[uuid.UUID]*Task{},
	}
}

// Enqueue validates and inserts a task. Recurring tasks whose due time has
// already passed are advanced to their first future occurrence rather than
// rejected; missed occurrences are never replayed.
func (s *Scheduler) Enqueue(now time.Time, task *Task) error {
	if err := task.validate(now, s.grace); err != nil {
		return err
	}

	if task.Schedule != ScheduleOneShot && task.DueAt.Before(now) {
		next, err := task.Recurrence.next(task.Schedule, now)
		if err != nil {
			return ValidationError{Field: "recurrence", Reason: err.Error()}
		}

		task.DueAt = next
	}

	if task.Uuid == uuid.Nil {
		task.Uuid = uuid.New()
	}

	task.Status = TaskPending
	task.Attempts = 0
	task.CreatedAt = now

	if s.repo != nil {
		if err := s.repo.Create(task); err != nil {
			return errors.Wrap(err, "Failed to persist delivery task")
		}
	}

	s.mu.Lock()
	copied := *task
	s.tasks[task.Uuid] = &copied
	s.mu.Unlock()

	return nil
}

// Due returns pending tasks with a due time at or before now, ordered by
// priority (urgent first) then due time (earlier first). The slice is a
// snapshot, re-polling re-derives it; the claim step is what prevents two
// workers from dispatching the same task.
func (s *Scheduler) Due(now time.Time) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked(now)

	var due []Task
	for _, task := range s.tasks {
		if task.Status == TaskPending && !task.DueAt.After(now) {
			due = append(due, *task)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}

		return due[i].DueAt.Before(due[j].DueAt)
	})

	return due
}

// Claim atomically transitions a pending task to dispatching and returns a
// copy of it. A task already dispatching yields TaskInFlightErr, a terminal
// one TaskNotPendingErr.
func (s *Scheduler) Claim(id uuid.UUID) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, TaskNotFoundErr
	}

	switch task.Status {
	case TaskPending:
		task.Status = TaskDispatching
		s.persistLocked(task)

		return *task, nil

	case TaskDispatching:
		return Task{}, TaskInFlightErr

	default:
		return Task{}, TaskNotPendingErr
	}
}

// MarkSent finishes a claimed task successfully.
func (s *Scheduler) MarkSent(id uuid.UUID) (Task, error) {
	return s.finish(id, func(task *Task) {
		task.Status = TaskSent
		task.LastError = ""
	})
}

// MarkFailed finishes a claimed task terminally after its last allowed attempt.
func (s *Scheduler) MarkFailed(id uuid.UUID, reason string) (Task, error) {
	return s.finish(id, func(task *Task) {
		task.Status = TaskFailed
		task.Attempts++
		task.LastError = reason
	})
}

// Retry returns a claimed task to pending with a new due time after a failed
// attempt.
func (s *Scheduler) Retry(id uuid.UUID, due time.Time, reason string) (Task, error) {
	return s.finish(id, func(task *Task) {
		task.Status = TaskPending
		task.Attempts++
		task.LastError = reason
		task.DueAt = due
	})
}

// Defer returns a claimed task to pending without consuming an attempt. Used
// for rate-limit backpressure, which is not a failure.
func (s *Scheduler) Defer(id uuid.UUID, due time.Time) (Task, error) {
	return s.finish(id, func(task *Task) {
		task.Status = TaskPending
		task.DueAt = due
	})
}

func (s *Scheduler) finish(id uuid.UUID, transition func(task *Task)) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, TaskNotFoundErr
	}

	if task.Status != TaskDispatching {
		return Task{}, TaskNotPendingErr
	}

	transition(task)
	if task.Status.Terminal() {
		task.FinishedAt = time.Now()
	}

	s.persistLocked(task)

	return *task, nil
}

// evictLocked drops terminal tasks that finished longer ago than the
// retention window. Their history lives on in the delivery log; keeping them
// in the live set forever would grow every poll on a long-running process.
func (s *Scheduler) evictLocked(now time.Time) {
	if s.retention <= 0 {
		return
	}

	for id, task := range s.tasks {
		if task.Status.Terminal() && !task.FinishedAt.IsZero() && now.Sub(task.FinishedAt) > s.retention {
			delete(s.tasks, id)
		}
	}
}

// Cancel cancels a pending task. Cancelling an already terminal task is a
// no-op, cancelling a claimed one fails since the in-flight attempt cannot be
// rolled back.
func (s *Scheduler) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return TaskNotFoundErr
	}

	switch {
	case task.Status.Terminal():
		return nil

	case task.Status == TaskDispatching:
		return TaskInFlightErr
	}

	task.Status = TaskCancelled
	task.FinishedAt = time.Now()
	s.persistLocked(task)

	return nil
}

// Reschedule produces the next occurrence of a just-dispatched recurring
// task as a fresh pending task. One-shot tasks yield nil.
func (s *Scheduler) Reschedule(task Task, now time.Time) (*Task, error) {
	if task.Schedule == ScheduleOneShot || task.Recurrence == nil {
		return nil, nil
	}

	due, err := task.Recurrence.next(task.Schedule, now)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to compute next occurrence")
	}

	next := &Task{
		Channel:    task.Channel,
		Recipient:  task.Recipient,
		Content:    task.Content,
		Priority:   task.Priority,
		Schedule:   task.Schedule,
		DueAt:      due,
		Recurrence: task.Recurrence,
	}

	if err := s.Enqueue(now, next); err != nil {
		return nil, err
	}

	return next, nil
}

// Get returns a snapshot of a single task.
func (s *Scheduler) Get(id uuid.UUID) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, TaskNotFoundErr
	}

	return *task, nil
}

// Tasks returns a snapshot of every live task, soonest due first.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, *task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DueAt.Before(tasks[j].DueAt)
	})

	return tasks
}

// restore loads tasks persisted by a previous run without re-validating them.
// Tasks left dispatching by a process that died mid-attempt are handed back
// to the pollers as pending.
func (s *Scheduler) restore(tasks []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range tasks {
		task := tasks[i]

		if task.Status == TaskDispatching {
			task.Status = TaskPending
			s.persistLocked(&task)
		}

		s.tasks[task.Uuid] = &task
	}
}

func (s *Scheduler) persistLocked(task *Task) {
	if s.repo == nil {
		return
	}

	copied := *task
	if err := s.repo.Update(&copied); err != nil {
		s.logger.
			WithField("task", task.Uuid).
			WithError(err).
			Error("failed to update delivery task in repository")
	}
}
