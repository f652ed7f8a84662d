package delivery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Recurrence describes how a recurring task produces its next occurrence.
// Interval tasks advance by a fixed duration, calendar tasks fire on a set of
// weekdays at a fixed time of day.
type Recurrence struct {
	Every time.Duration `json:"every,omitempty"`

	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	At       string         `json:"at,omitempty"` // HH:MM
}

func (r *Recurrence) validate(kind ScheduleKind) error {
	switch kind {
	case ScheduleInterval:
		if r.Every <= 0 {
			return ValidationError{Field: "recurrence", Reason: "interval must be positive"}
		}

	case ScheduleCalendar:
		if len(r.Weekdays) == 0 {
			return ValidationError{Field: "recurrence", Reason: "weekday set must not be empty"}
		}

		if _, _, err := parseHHMM(r.At); err != nil {
			return ValidationError{Field: "recurrence", Reason: err.Error()}
		}
	}

	return nil
}

// next returns the first occurrence strictly after the given time. Missed
// occurrences are skipped, never replayed.
func (r *Recurrence) next(kind ScheduleKind, after time.Time) (time.Time, error) {
	switch kind {
	case ScheduleInterval:
		return after.Add(r.Every), nil

	case ScheduleCalendar:
		schedule, err := cron.ParseStandard(r.cronSpec())
		if err != nil {
			return time.Time{}, err
		}

		return schedule.Next(after), nil
	}

	return time.Time{}, fmt.Errorf("schedule kind %d does not recur", kind)
}

// cronSpec renders the weekday set as a standard cron expression,
// e.g. Mon+Wed at 09:30 becomes "30 9 * * 1,3".
func (r *Recurrence) cronSpec() string {
	hour, minute, _ := parseHHMM(r.At)

	days := make([]string, 0, len(r.Weekdays))
	for _, day := range r.Weekdays {
		days = append(days, strconv.Itoa(int(day)))
	}

	return fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(days, ","))
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour, minute, nil
}
