package events

import "time"

// Resume events are the external signals that wake a suspended run. They
// arrive over webhooks or the inbound queue; the engine matches each one
// against the wait descriptor of at most one run.

// InboundMessage is a reply from a lead on a messaging channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"` // e.g. "whatsapp"
	Phone     string    `json:"phone"`
	Body      string    `json:"body,omitempty"`
	ButtonID  string    `json:"button_id,omitempty"` // Set when the lead tapped a button
	Timestamp time.Time `json:"timestamp"`
}

// CallOutcome is the final disposition of an AI voice call.
type CallOutcome struct {
	ID        string    `json:"id"`
	CallID    string    `json:"call_id"`
	Outcome   string    `json:"outcome"` // interested, no_answer, voicemail, ...
	Timestamp time.Time `json:"timestamp"`
}

// TaskCompleted signals that a human agent finished a task a run is
// waiting on.
type TaskCompleted struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Outcome   string    `json:"outcome,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
