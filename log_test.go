package delivery

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestMemoryLog(t *testing.T) {
	suite.Run(t, new(memoryLogTestSuite))
}

type memoryLogTestSuite struct {
	suite.Suite

	log  RecordRepository
	base time.Time
}

func (suite *memoryLogTestSuite) SetupTest() {
	suite.log = NewMemoryLog()
	suite.base = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	outcomes := []Outcome{OutcomeSent, OutcomeFailed, OutcomeSent, OutcomeSent}
	channels := []Channel{ChannelEmail, ChannelEmail, ChannelSms, ChannelEmail}

	for i := range outcomes {
		err := suite.log.Append(&Record{
			Uuid:      uuid.New(),
			TaskUuid:  uuid.New(),
			Channel:   channels[i],
			Recipient: "user@example.com",
			Content:   "hello",
			Outcome:   outcomes[i],
			CreatedAt: suite.base.Add(time.Duration(i) * time.Minute),
		})

		assert.NoError(suite.T(), err)
	}
}

func (suite *memoryLogTestSuite) TestMatchingOrdersNewestFirst() {
	records, total, err := suite.log.Matching(RecordCriteria{})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, total)

	for i := 1; i < len(records); i++ {
		assert.False(suite.T(), records[i].CreatedAt.After(records[i-1].CreatedAt))
	}
}

func (suite *memoryLogTestSuite) TestMatchingFilters() {
	records, total, err := suite.log.Matching(RecordCriteria{Outcome: OutcomeFailed})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, total)
	assert.Equal(suite.T(), ChannelEmail, records[0].Channel)

	_, total, err = suite.log.Matching(RecordCriteria{Channel: ChannelSms})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, total)

	_, total, err = suite.log.Matching(RecordCriteria{
		After:  suite.base.Add(time.Minute),
		Before: suite.base.Add(2 * time.Minute),
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, total)
}

func (suite *memoryLogTestSuite) TestMatchingPaging() {
	records, total, err := suite.log.Matching(RecordCriteria{Offset: 1, Limit: 2})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, total)

	if !assert.Len(suite.T(), records, 2) {
		return
	}

	assert.Equal(suite.T(), suite.base.Add(2*time.Minute), records[0].CreatedAt)
	assert.Equal(suite.T(), suite.base.Add(time.Minute), records[1].CreatedAt)
}

func (suite *memoryLogTestSuite) TestMatchingOffsetPastEnd() {
	records, total, err := suite.log.Matching(RecordCriteria{Offset: 10})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, total)
	assert.Empty(suite.T(), records)
}
