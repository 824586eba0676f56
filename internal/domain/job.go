package domain

import "time"

// Job is a scheduled task as returned by the task API. The client never
// evaluates CronExpression; it is an opaque cron expression owned by the
// backend. Method and Body describe the HTTP request the backend fires at
// CallbackURL on each run.
type Job struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CronExpression string    `json:"cronExpression"`
	CallbackURL    string    `json:"callbackUrl"`
	Method         string    `json:"method"`
	Body           string    `json:"body,omitempty"`
	IsActive       bool      `json:"isActive"`
	LastExecuted   time.Time `json:"lastExecuted,omitzero"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}
