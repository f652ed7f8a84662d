package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestRecurrence(t *testing.T) {
	suite.Run(t, new(recurrenceTestSuite))
}

type recurrenceTestSuite struct {
	suite.Suite
}

func (suite *recurrenceTestSuite) TestIntervalNext() {
	recurrence := &Recurrence{Every: 45 * time.Minute}

	after := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	next, err := recurrence.next(ScheduleInterval, after)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), after.Add(45*time.Minute), next)
}

func (suite *recurrenceTestSuite) TestCalendarNextSameWeek() {
	recurrence := &Recurrence{
		Weekdays: []time.Weekday{time.Wednesday, time.Friday},
		At:       "15:00",
	}

	// Wednesday before 15:00, so the same day still qualifies.
	after := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	next, err := recurrence.next(ScheduleCalendar, after)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC), next)
}

func (suite *recurrenceTestSuite) TestCalendarNextWrapsToNextWeek() {
	recurrence := &Recurrence{
		Weekdays: []time.Weekday{time.Monday},
		At:       "09:30",
	}

	// Monday after 09:30 has already passed for the day.
	after := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

	next, err := recurrence.next(ScheduleCalendar, after)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), next)
}

func (suite *recurrenceTestSuite) TestValidation() {
	cases := []struct {
		kind       ScheduleKind
		recurrence Recurrence
		valid      bool
	}{
		{ScheduleInterval, Recurrence{Every: time.Minute}, true},
		{ScheduleInterval, Recurrence{}, false},
		{ScheduleInterval, Recurrence{Every: -time.Minute}, false},
		{ScheduleCalendar, Recurrence{Weekdays: []time.Weekday{time.Monday}, At: "09:30"}, true},
		{ScheduleCalendar, Recurrence{At: "09:30"}, false},
		{ScheduleCalendar, Recurrence{Weekdays: []time.Weekday{time.Monday}, At: "9am"}, false},
		{ScheduleCalendar, Recurrence{Weekdays: []time.Weekday{time.Monday}, At: "24:00"}, false},
	}

	for _, c := range cases {
		err := c.recurrence.validate(c.kind)

		if c.valid {
			assert.NoError(suite.T(), err)
		} else {
			assert.IsType(suite.T(), ValidationError{}, err)
		}
	}
}

func (suite *recurrenceTestSuite) TestCronSpec() {
	recurrence := &Recurrence{
		Weekdays: []time.Weekday{time.Sunday, time.Wednesday},
		At:       "08:05",
	}

	assert.Equal(suite.T(), "5 8 * * 0,3", recurrence.cronSpec())
}
