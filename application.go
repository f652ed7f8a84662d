package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const UserAgent = "InteractiveSolutions/GoDelivery-1.0"

type Application interface {
	HttpHandler() *HttpHandler

	Send(channel Channel, recipient, content string, priority Priority) (uuid.UUID, error)
	SendToContact(contactId uuid.UUID, channel Channel, content string, priority Priority) (uuid.UUID, error)
	SendTemplate(channel Channel, recipient string, templateId uuid.UUID, parameters map[string]string, priority Priority) (uuid.UUID, error)
	ScheduleAt(channel Channel, recipient, content string, priority Priority, at time.Time) (uuid.UUID, error)
	ScheduleEvery(channel Channel, recipient, content string, priority Priority, start time.Time, every time.Duration) (uuid.UUID, error)
	ScheduleWeekly(channel Channel, recipient, content string, priority Priority, weekdays []time.Weekday, at string) (uuid.UUID, error)
	Import(rows []ImportRow, options ImportOptions) ([]uuid.UUID, error)

	Cancel(id uuid.UUID) error
	Tasks() []Task
	Records(criteria RecordCriteria) ([]Record, int, error)

	RunOnce(ctx context.Context, now time.Time) (int, error)
	Shutdown(ctx context.Context)
}

type AppOption func(a *application)

func SetLogger(logger logrus.FieldLogger) AppOption {
	return func(a *application) {
		a.logger = logger
	}
}

func SetTaskRepo(repo TaskRepository) AppOption {
	return func(a *application) {
		a.taskRepo = repo
	}
}

func SetRecordRepo(repo RecordRepository) AppOption {
	return func(a *application) {
		a.recordRepo = repo
	}
}

func SetContactRepo(repo ContactRepository) AppOption {
	return func(a *application) {
		a.contactRepo = repo
	}
}

func SetTemplateRepo(repo TemplateRepository) AppOption {
	return func(a *application) {
		a.templateRepo = repo
	}
}

func SetSender(channel Channel, sender Sender) AppOption {
	return func(a *application) {
		a.senders[channel] = sender
	}
}

// SetWorkerCount sets how many dispatch workers poll concurrently. Zero
// disables the background loop entirely, leaving dispatch to explicit
// RunOnce calls (cooperative mode).
func SetWorkerCount(count int) AppOption {
	return func(a *application) {
		a.workerCount = count
	}
}

func SetPollInterval(interval time.Duration) AppOption {
	return func(a *application) {
		a.pollInterval = interval
	}
}

func SetMaxAttempts(attempts int) AppOption {
	return func(a *application) {
		a.dispatchCfg.MaxAttempts = attempts
	}
}

func SetBaseBackoff(d time.Duration) AppOption {
	return func(a *application) {
		a.dispatchCfg.BaseBackoff = d
	}
}

func SetMaxBackoff(d time.Duration) AppOption {
	return func(a *application) {
		a.dispatchCfg.MaxBackoff = d
	}
}

func SetSendTimeout(d time.Duration) AppOption {
	return func(a *application) {
		a.dispatchCfg.SendTimeout = d
	}
}

// SetDailyCap caps sends per channel per UTC day, zero means unlimited.
func SetDailyCap(count int) AppOption {
	return func(a *application) {
		a.dailyCap = count
	}
}

// SetMinDelay enforces a minimum spacing between consecutive sends on the
// same channel.
func SetMinDelay(d time.Duration) AppOption {
	return func(a *application) {
		a.minDelay = d
	}
}

// SetPastDueGrace allows one-shot tasks to be enqueued with a due time up to
// the given duration in the past.
func SetPastDueGrace(d time.Duration) AppOption {
	return func(a *application) {
		a.grace = d
	}
}

// SetTerminalRetention sets how long finished tasks stay addressable in the
// live set before being evicted; their records remain in the delivery log.
// Zero keeps them forever.
func SetTerminalRetention(d time.Duration) AppOption {
	return func(a *application) {
		a.retention = d
	}
}

type application struct {
	logger logrus.FieldLogger

	scheduler  *Scheduler
	dispatcher *Dispatcher
	limits     *RateLimits

	taskRepo     TaskRepository
	recordRepo   RecordRepository
	contactRepo  ContactRepository
	templateRepo TemplateRepository
	senders      SenderMap

	dispatchCfg DispatcherConfig
	dailyCap    int
	minDelay    time.Duration
	grace       time.Duration
	retention   time.Duration

	workerCount  int
	pollInterval time.Duration

	queue        chan Task
	workerCancel context.CancelFunc
	workerDone   chan struct{}
}

func NewApplication(options ...AppOption) (Application, error) {
	app := &application{
		logger: logrus.New(),

		senders: SenderMap{},

		retention:    24 * time.Hour,
		workerCount:  5,
		pollInterval: time.Second,
	}

	for _, option := range options {
		option(app)
	}

	if err := app.ensureUsableConfiguration(); err != nil {
		return app, err
	}

	if app.recordRepo == nil {
		app.recordRepo = NewMemoryLog()
	}

	if app.templateRepo == nil {
		app.templateRepo = NewMemoryTemplates()
	}

	app.limits = NewRateLimits(app.dailyCap, app.minDelay)
	app.scheduler = NewScheduler(app.taskRepo, app.grace, app.retention, app.logger)
	app.dispatcher = NewDispatcher(app.scheduler, app.limits, app.senders, app.recordRepo, app.dispatchCfg, app.logger)

	if app.taskRepo != nil {
		pending, err := app.taskRepo.GetPending()
		if err != nil {
			return app, errors.Wrap(err, "Failed to load pending delivery tasks")
		}

		app.scheduler.restore(pending)
	}

	if app.workerCount > 0 {
		app.start()
	}

	return app, nil
}

func (a *application) ensureUsableConfiguration() error {
	if len(a.senders) == 0 {
		return errors.New("No channel senders configured")
	}

	return nil
}

func (a *application) HttpHandler() *HttpHandler {
	return &HttpHandler{
		app: a,
	}
}

func (a *application) Send(channel Channel, recipient, content string, priority Priority) (uuid.UUID, error) {
	return a.ScheduleAt(channel, recipient, content, priority, time.Now())
}

func (a *application) SendToContact(contactId uuid.UUID, channel Channel, content string, priority Priority) (uuid.UUID, error) {
	if a.contactRepo == nil {
		return uuid.Nil, errors.New("No contact repository configured")
	}

	contact, err := a.contactRepo.Get(contactId)
	if err != nil {
		return uuid.Nil, err
	}

	recipient, ok := contact.Address(channel)
	if !ok {
		return uuid.Nil, ValidationError{Field: "recipient", Reason: "contact has no address for the channel"}
	}

	return a.Send(channel, recipient, content, priority)
}

func (a *application) SendTemplate(channel Channel, recipient string, templateId uuid.UUID, parameters map[string]string, priority Priority) (uuid.UUID, error) {
	content, err := a.renderTemplate(templateId, parameters)
	if err != nil {
		return uuid.Nil, err
	}

	return a.Send(channel, recipient, content, priority)
}

func (a *application) renderTemplate(templateId uuid.UUID, parameters map[string]string) (string, error) {
	template, err := a.templateRepo.Get(templateId)
	if err != nil {
		return "", err
	}

	return template.Render(parameters), nil
}

func (a *application) ScheduleAt(channel Channel, recipient, content string, priority Priority, at time.Time) (uuid.UUID, error) {
	task := &Task{
		Channel:   channel,
		Recipient: recipient,
		Content:   content,
		Priority:  priority,
		Schedule:  ScheduleOneShot,
		DueAt:     at,
	}

	return a.enqueue(task)
}

func (a *application) ScheduleEvery(channel Channel, recipient, content string, priority Priority, start time.Time, every time.Duration) (uuid.UUID, error) {
	task := &Task{
		Channel:    channel,
		Recipient:  recipient,
		Content:    content,
		Priority:   priority,
		Schedule:   ScheduleInterval,
		DueAt:      start,
		Recurrence: &Recurrence{Every: every},
	}

	return a.enqueue(task)
}

func (a *application) ScheduleWeekly(channel Channel, recipient, content string, priority Priority, weekdays []time.Weekday, at string) (uuid.UUID, error) {
	task := &Task{
		Channel:    channel,
		Recipient:  recipient,
		Content:    content,
		Priority:   priority,
		Schedule:   ScheduleCalendar,
		Recurrence: &Recurrence{Weekdays: weekdays, At: at},
	}

	return a.enqueue(task)
}

func (a *application) enqueue(task *Task) (uuid.UUID, error) {
	if _, ok := a.senders[task.Channel]; !ok {
		return uuid.Nil, errors.Errorf("No sender configured for channel %s", task.Channel)
	}

	if err := a.scheduler.Enqueue(time.Now(), task); err != nil {
		return uuid.Nil, err
	}

	return task.Uuid, nil
}

func (a *application) Import(rows []ImportRow, options ImportOptions) ([]uuid.UUID, error) {
	if _, ok := a.senders[options.Channel]; !ok {
		return nil, errors.Errorf("No sender configured for channel %s", options.Channel)
	}

	var template Template
	if options.TemplateUuid != uuid.Nil {
		var err error
		if template, err = a.templateRepo.Get(options.TemplateUuid); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	dues := importDueTimes(a.limits, options.Channel, len(rows), now)

	ids := make([]uuid.UUID, 0, len(rows))
	for i, row := range rows {
		recipient := row.Recipient
		if options.TestRecipient != "" {
			recipient = options.TestRecipient
		}

		content := row.Content
		if options.TemplateUuid != uuid.Nil {
			content = template.Render(row.Parameters)
		}

		task := &Task{
			Channel:   options.Channel,
			Recipient: recipient,
			Content:   content,
			Priority:  options.Priority,
			Schedule:  ScheduleOneShot,
			DueAt:     dues[i],
		}

		if err := a.scheduler.Enqueue(now, task); err != nil {
			return ids, errors.Wrapf(err, "Failed to import row %d", i)
		}

		ids = append(ids, task.Uuid)
	}

	return ids, nil
}

func (a *application) Cancel(id uuid.UUID) error {
	return a.scheduler.Cancel(id)
}

func (a *application) Tasks() []Task {
	return a.scheduler.Tasks()
}

func (a *application) Records(criteria RecordCriteria) ([]Record, int, error) {
	return a.recordRepo.Matching(criteria)
}

// RunOnce dispatches everything currently due. It is the cooperative
// alternative to the background workers and shares the same claim step, so
// mixing both modes stays safe.
func (a *application) RunOnce(ctx context.Context, now time.Time) (int, error) {
	return a.dispatcher.RunOnce(ctx, now)
}

func (a *application) Shutdown(ctx context.Context) {
	if a.workerCancel == nil {
		return
	}

	a.workerCancel()

	select {
	case <-a.workerDone:
	case <-ctx.Done():
	}
}

func (a *application) start() {
	ctx, cancel := context.WithCancel(context.Background())

	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	a.queue = make(chan Task, 256)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.poll(ctx)
	}()

	for i := 0; i < a.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.worker(ctx)
		}()
	}

	go func() {
		wg.Wait()
		close(a.workerDone)
	}()
}

func (a *application) poll(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for _, task := range a.scheduler.Due(time.Now()) {
				// Non-blocking: a full queue is retried on the next poll and
				// the claim step deduplicates tasks queued twice.
				select {
				case a.queue <- task:
				default:
				}
			}
		}
	}
}

func (a *application) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case task := <-a.queue:
			if err := a.dispatcher.Dispatch(ctx, time.Now(), task); err != nil {
				a.logger.
					WithField("task", task.Uuid).
					WithError(err).
					Error("delivery log append failed, stopping dispatch worker")

				a.workerCancel()

				return
			}
		}
	}
}
