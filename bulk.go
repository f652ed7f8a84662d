package delivery

import (
	"time"

	"github.com/google/uuid"
)

// ImportRow is one row of a bulk import, already decoded from whatever
// tabular source the caller uses. Parameters fill template placeholders when
// the import references a template, otherwise Content is sent as-is.
type ImportRow struct {
	Recipient  string            `json:"recipient"`
	Content    string            `json:"content"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ImportOptions controls a bulk import. A non-empty TestRecipient redirects
// every row there, so large imports can be dry-run against a single inbox.
// A non-nil TemplateUuid renders every row's content from that template.
type ImportOptions struct {
	Channel       Channel
	Priority      Priority
	TestRecipient string
	TemplateUuid  uuid.UUID
}

// importDueTimes plans one due time per row. Rows that fit in today's
// remaining daily window are due immediately, the excess spills into the
// following windows in daily-cap sized chunks instead of being rejected.
func importDueTimes(limits *RateLimits, channel Channel, rows int, now time.Time) []time.Time {
	dues := make([]time.Time, 0, rows)

	remaining := limits.Remaining(channel, now)
	dailyCap := limits.DailyCap()

	due := now
	for i := 0; i < rows; i++ {
		if dailyCap > 0 && remaining == 0 {
			due = NextReset(due)
			remaining = dailyCap
		}

		dues = append(dues, due)

		if dailyCap > 0 {
			remaining--
		}
	}

	return dues
}
