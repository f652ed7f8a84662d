package delivery

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestScheduler(t *testing.T) {
	suite.Run(t, new(schedulerTestSuite))
}

type schedulerTestSuite struct {
	suite.Suite

	now time.Time
}

func (suite *schedulerTestSuite) SetupTest() {
	// A Wednesday, to keep calendar expectations readable.
	suite.now = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
}

func (suite *schedulerTestSuite) newScheduler() *Scheduler {
	return NewScheduler(nil, 0, 0, quietLogger())
}

func (suite *schedulerTestSuite) newTask(priority Priority, due time.Time) *Task {
	return &Task{
		Channel:   ChannelEmail,
		Recipient: "user@example.com",
		Content:   "hello",
		Priority:  priority,
		Schedule:  ScheduleOneShot,
		DueAt:     due,
	}
}

func (suite *schedulerTestSuite) TestDueOrdersByPriorityThenDueTime() {
	scheduler := suite.newScheduler()

	normal := suite.newTask(PriorityNormal, suite.now)
	urgent := suite.newTask(PriorityUrgent, suite.now)
	urgentLater := suite.newTask(PriorityUrgent, suite.now.Add(time.Minute))

	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, normal))
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, urgentLater))
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, urgent))

	due := scheduler.Due(suite.now.Add(time.Minute))
	if !assert.Len(suite.T(), due, 3) {
		return
	}

	assert.Equal(suite.T(), urgent.Uuid, due[0].Uuid)
	assert.Equal(suite.T(), urgentLater.Uuid, due[1].Uuid)
	assert.Equal(suite.T(), normal.Uuid, due[2].Uuid)
}

func (suite *schedulerTestSuite) TestDueExcludesFutureAndNonPending() {
	scheduler := suite.newScheduler()

	current := suite.newTask(PriorityNormal, suite.now)
	future := suite.newTask(PriorityNormal, suite.now.Add(time.Hour))
	cancelled := suite.newTask(PriorityNormal, suite.now)

	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, current))
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, future))
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, cancelled))
	assert.NoError(suite.T(), scheduler.Cancel(cancelled.Uuid))

	due := scheduler.Due(suite.now)
	if !assert.Len(suite.T(), due, 1) {
		return
	}

	assert.Equal(suite.T(), current.Uuid, due[0].Uuid)
}

func (suite *schedulerTestSuite) TestEnqueueRejectsInvalidTasks() {
	scheduler := suite.newScheduler()

	missingRecipient := suite.newTask(PriorityNormal, suite.now)
	missingRecipient.Recipient = ""

	missingContent := suite.newTask(PriorityNormal, suite.now)
	missingContent.Content = ""

	pastDue := suite.newTask(PriorityNormal, suite.now.Add(-time.Minute))

	for _, task := range []*Task{missingRecipient, missingContent, pastDue} {
		err := scheduler.Enqueue(suite.now, task)
		assert.IsType(suite.T(), ValidationError{}, err)
	}

	assert.Empty(suite.T(), scheduler.Tasks())
}

func (suite *schedulerTestSuite) TestEnqueueHonoursPastDueGrace() {
	scheduler := NewScheduler(nil, 5*time.Minute, 0, quietLogger())

	task := suite.newTask(PriorityNormal, suite.now.Add(-time.Minute))

	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))
}

func (suite *schedulerTestSuite) TestEnqueueAdvancesPastDueRecurring() {
	scheduler := suite.newScheduler()

	task := suite.newTask(PriorityNormal, suite.now.Add(-30*time.Minute))
	task.Schedule = ScheduleInterval
	task.Recurrence = &Recurrence{Every: time.Hour}

	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))

	stored, err := scheduler.Get(task.Uuid)
	if !assert.NoError(suite.T(), err) {
		return
	}

	assert.Equal(suite.T(), suite.now.Add(time.Hour), stored.DueAt)
}

func (suite *schedulerTestSuite) TestCancelSemantics() {
	scheduler := suite.newScheduler()

	assert.Equal(suite.T(), TaskNotFoundErr, scheduler.Cancel(uuid.New()))

	task := suite.newTask(PriorityNormal, suite.now)
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))

	assert.NoError(suite.T(), scheduler.Cancel(task.Uuid))

	stored, _ := scheduler.Get(task.Uuid)
	assert.Equal(suite.T(), TaskCancelled, stored.Status)

	// Cancelling an already cancelled task is a no-op, not an error.
	assert.NoError(suite.T(), scheduler.Cancel(task.Uuid))

	stored, _ = scheduler.Get(task.Uuid)
	assert.Equal(suite.T(), TaskCancelled, stored.Status)
}

func (suite *schedulerTestSuite) TestCancelFailsOnceClaimed() {
	scheduler := suite.newScheduler()

	task := suite.newTask(PriorityNormal, suite.now)
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))

	_, err := scheduler.Claim(task.Uuid)
	assert.NoError(suite.T(), err)

	assert.Equal(suite.T(), TaskInFlightErr, scheduler.Cancel(task.Uuid))
}

func (suite *schedulerTestSuite) TestClaimIsExclusive() {
	scheduler := suite.newScheduler()

	task := suite.newTask(PriorityNormal, suite.now)
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))

	claimed, err := scheduler.Claim(task.Uuid)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), TaskDispatching, claimed.Status)

	_, err = scheduler.Claim(task.Uuid)
	assert.Equal(suite.T(), TaskInFlightErr, err)

	_, err = scheduler.Claim(uuid.New())
	assert.Equal(suite.T(), TaskNotFoundErr, err)
}

func (suite *schedulerTestSuite) TestClaimRejectsTerminalTasks() {
	scheduler := suite.newScheduler()

	task := suite.newTask(PriorityNormal, suite.now)
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))
	assert.NoError(suite.T(), scheduler.Cancel(task.Uuid))

	_, err := scheduler.Claim(task.Uuid)
	assert.Equal(suite.T(), TaskNotPendingErr, err)
}

func (suite *schedulerTestSuite) TestRescheduleIntervalSpawnsNextOccurrence() {
	scheduler := suite.newScheduler()

	task := suite.newTask(PriorityHigh, suite.now)
	task.Schedule = ScheduleInterval
	task.Recurrence = &Recurrence{Every: time.Hour}

	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))

	_, err := scheduler.Claim(task.Uuid)
	assert.NoError(suite.T(), err)

	sent, err := scheduler.MarkSent(task.Uuid)
	assert.NoError(suite.T(), err)

	next, err := scheduler.Reschedule(sent, suite.now)
	if !assert.NoError(suite.T(), err) || !assert.NotNil(suite.T(), next) {
		return
	}

	assert.NotEqual(suite.T(), task.Uuid, next.Uuid)
	assert.Equal(suite.T(), suite.now.Add(time.Hour), next.DueAt)
	assert.Equal(suite.T(), TaskPending, next.Status)
	assert.Equal(suite.T(), 0, next.Attempts)
	assert.Equal(suite.T(), PriorityHigh, next.Priority)

	original, _ := scheduler.Get(task.Uuid)
	assert.Equal(suite.T(), TaskSent, original.Status)
}

func (suite *schedulerTestSuite) TestRescheduleCalendarPicksNextWeekday() {
	scheduler := suite.newScheduler()

	task := suite.newTask(PriorityNormal, suite.now)
	task.Schedule = ScheduleCalendar
	task.Recurrence = &Recurrence{
		Weekdays: []time.Weekday{time.Monday},
		At:       "09:30",
	}

	next, err := scheduler.Reschedule(*task, suite.now)
	if !assert.NoError(suite.T(), err) || !assert.NotNil(suite.T(), next) {
		return
	}

	// suite.now is Wednesday 2024-01-03, the next Monday is the 8th.
	assert.Equal(suite.T(), time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC), next.DueAt)
}

func (suite *schedulerTestSuite) TestRescheduleIgnoresOneShotTasks() {
	scheduler := suite.newScheduler()

	next, err := scheduler.Reschedule(*suite.newTask(PriorityNormal, suite.now), suite.now)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), next)
}

func (suite *schedulerTestSuite) TestDueEvictsExpiredTerminalTasks() {
	scheduler := NewScheduler(nil, 0, time.Hour, quietLogger())

	// Eviction compares against the wall-clock finish time.
	now := time.Now()

	finished := suite.newTask(PriorityNormal, now)
	pending := suite.newTask(PriorityNormal, now.Add(48*time.Hour))

	assert.NoError(suite.T(), scheduler.Enqueue(now, finished))
	assert.NoError(suite.T(), scheduler.Enqueue(now, pending))
	assert.NoError(suite.T(), scheduler.Cancel(finished.Uuid))

	// Within the retention window the terminal task stays addressable.
	scheduler.Due(now)
	_, err := scheduler.Get(finished.Uuid)
	assert.NoError(suite.T(), err)
	assert.NoError(suite.T(), scheduler.Cancel(finished.Uuid))

	scheduler.Due(now.Add(2 * time.Hour))

	_, err = scheduler.Get(finished.Uuid)
	assert.Equal(suite.T(), TaskNotFoundErr, err)

	_, err = scheduler.Get(pending.Uuid)
	assert.NoError(suite.T(), err)
}

func (suite *schedulerTestSuite) TestRestoreResetsInterruptedDispatch() {
	repo := &taskRepository{}
	scheduler := NewScheduler(repo, 0, 0, quietLogger())

	interrupted := Task{
		Uuid:      uuid.New(),
		Channel:   ChannelEmail,
		Recipient: "user@example.com",
		Content:   "hello",
		Schedule:  ScheduleOneShot,
		Status:    TaskDispatching,
		DueAt:     suite.now,
	}

	scheduler.restore([]Task{interrupted})

	stored, err := scheduler.Get(interrupted.Uuid)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), TaskPending, stored.Status)
	assert.Equal(suite.T(), 1, repo.updated)
}

func (suite *schedulerTestSuite) TestWritesThroughToRepository() {
	repo := &taskRepository{}
	scheduler := NewScheduler(repo, 0, 0, quietLogger())

	task := suite.newTask(PriorityNormal, suite.now)
	assert.NoError(suite.T(), scheduler.Enqueue(suite.now, task))
	assert.Equal(suite.T(), 1, repo.created)

	_, err := scheduler.Claim(task.Uuid)
	assert.NoError(suite.T(), err)

	_, err = scheduler.MarkSent(task.Uuid)
	assert.NoError(suite.T(), err)

	assert.Equal(suite.T(), 2, repo.updated)
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.Out = io.Discard

	return logger
}

type taskRepository struct {
	mu sync.Mutex

	pending []Task
	created int
	updated int
}

func (repo *taskRepository) GetPending() ([]Task, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	return repo.pending, nil
}

func (repo *taskRepository) Create(task *Task) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.created++

	return nil
}

func (repo *taskRepository) Update(task *Task) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.updated++

	return nil
}
