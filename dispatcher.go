package delivery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DispatcherConfig carries the retry policy knobs.
type DispatcherConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	SendTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}

	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 30 * time.Second
	}

	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 15 * time.Minute
	}

	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}

	return c
}

// Dispatcher pulls due tasks from the scheduler and drives each through the
// pending → dispatching → sent/failed state machine: claim, rate-limit check,
// sender invocation, outcome record. It never sleeps; every wait is expressed
// as a future due time the scheduler evaluates on the next poll.
type Dispatcher struct {
	logger logrus.FieldLogger

	scheduler *Scheduler
	limits    *RateLimits
	senders   SenderMap
	log       RecordRepository

	cfg DispatcherConfig
}

func NewDispatcher(scheduler *Scheduler, limits *RateLimits, senders SenderMap, log RecordRepository, cfg DispatcherConfig, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}

	return &Dispatcher{
		logger:    logger,
		scheduler: scheduler,
		limits:    limits,
		senders:   senders,
		log:       log,
		cfg:       cfg.withDefaults(),
	}
}

// RunOnce dispatches every task due at now and returns how many were handled.
// An error is only returned when the delivery log cannot be appended to,
// which is fatal.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (int, error) {
	handled := 0

	for _, task := range d.scheduler.Due(now) {
		if err := ctx.Err(); err != nil {
			return handled, err
		}

		if err := d.Dispatch(ctx, now, task); err != nil {
			return handled, err
		}

		handled++
	}

	return handled, nil
}

// Dispatch runs a single task through one attempt. Losing the claim race is
// not an error, neither is rate-limit backpressure: the former is skipped,
// the latter pushes the due time forward.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time, task Task) error {
	claimed, err := d.scheduler.Claim(task.Uuid)
	if err != nil {
		d.logger.
			WithField("task", task.Uuid).
			WithError(err).
			Debug("skipping dispatch, task was not claimable")

		return nil
	}

	if retryAt, ok := d.limits.Reserve(claimed.Channel, now); !ok {
		_, err := d.scheduler.Defer(claimed.Uuid, retryAt)
		return err
	}

	sendErr := d.send(ctx, claimed)

	record := &Record{
		Uuid:      uuid.New(),
		TaskUuid:  claimed.Uuid,
		Channel:   claimed.Channel,
		Recipient: claimed.Recipient,
		Content:   claimed.Content,
		CreatedAt: now,
	}

	if sendErr == nil {
		record.Outcome = OutcomeSent

		if _, err := d.scheduler.MarkSent(claimed.Uuid); err != nil {
			return err
		}

		if next, err := d.scheduler.Reschedule(claimed, now); err != nil {
			d.logger.
				WithField("task", claimed.Uuid).
				WithError(err).
				Error("failed to schedule the next occurrence")
		} else if next != nil {
			d.logger.
				WithField("task", claimed.Uuid).
				WithField("next", next.Uuid).
				Debug("scheduled next occurrence")
		}
	} else {
		record.Outcome = OutcomeFailed
		record.Error = sendErr.Error()

		attempts := claimed.Attempts + 1
		if attempts < d.cfg.MaxAttempts {
			due := now.Add(d.backoffDelay(attempts))

			if _, err := d.scheduler.Retry(claimed.Uuid, due, sendErr.Error()); err != nil {
				return err
			}
		} else {
			if _, err := d.scheduler.MarkFailed(claimed.Uuid, sendErr.Error()); err != nil {
				return err
			}

			d.logger.
				WithField("task", claimed.Uuid).
				WithField("attempts", attempts).
				WithError(sendErr).
				Warn("delivery task failed terminally")
		}
	}

	if err := d.log.Append(record); err != nil {
		return errors.Wrap(err, "Failed to append to the delivery log")
	}

	return nil
}

func (d *Dispatcher) send(ctx context.Context, task Task) error {
	sender, ok := d.senders[task.Channel]
	if !ok {
		return errors.Errorf("No sender configured for channel %s", task.Channel)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	return sender.Send(sendCtx, task.Recipient, task.Content)
}

// backoffDelay is the retry delay after the given number of failed attempts:
// base doubled per failure, capped at the configured maximum and free of
// jitter so successive retry due times are strictly increasing up to the cap.
func (d *Dispatcher) backoffDelay(failures int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.BaseBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = d.cfg.MaxBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()

	delay := policy.NextBackOff()
	for i := 0; i < failures; i++ {
		delay = policy.NextBackOff()
	}

	return delay
}
