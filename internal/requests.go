package internal

type ScheduleTaskRequest struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Priority  string `json:"priority"`

	// One-shot due time, RFC3339. Empty means send immediately.
	At string `json:"at,omitempty"`

	// Recurring schedules: a fixed interval in minutes, or a weekday set with
	// a HH:MM time of day.
	EveryMinutes int    `json:"everyMinutes,omitempty"`
	Weekdays     []int  `json:"weekdays,omitempty"`
	AtTime       string `json:"atTime,omitempty"`

	// When set, the content is rendered from the stored template instead of
	// the content field.
	TemplateUuid string            `json:"templateUuid,omitempty"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

type ImportRowRequest struct {
	Recipient  string            `json:"recipient"`
	Content    string            `json:"content"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type ImportRequest struct {
	Channel       string             `json:"channel"`
	Priority      string             `json:"priority"`
	TestRecipient string             `json:"testRecipient,omitempty"`
	TemplateUuid  string             `json:"templateUuid,omitempty"`
	Rows          []ImportRowRequest `json:"rows"`
}

type ContactRequest struct {
	Name      string            `json:"name"`
	Addresses map[string]string `json:"addresses"`
}

type TemplateRequest struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`
}
