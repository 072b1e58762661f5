package models

import "time"

// ExecutionLogRetention is how long execution log entries are kept before
// the daily purge removes them. Runs themselves are retained forever.
const ExecutionLogRetention = 90 * 24 * time.Hour

// ExecutionLogEntry is the immutable audit record written once per node
// attempt. The engine only ever appends; dashboards read it, the scheduler
// never does.
type ExecutionLogEntry struct {
	ID             string     `json:"id"`
	RunID          string     `json:"run_id"`
	AutomationID   string     `json:"automation_id"`
	LeadID         string     `json:"lead_id"`
	OrganizationID string     `json:"organization_id"`
	NodeID         string     `json:"node_id"`
	NodeType       string     `json:"node_type"`
	Status         StepStatus `json:"status"`
	Message        string     `json:"message,omitempty"`
	Error          string     `json:"error,omitempty"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
	Attempt        int        `json:"attempt"`
	Timestamp      time.Time  `json:"timestamp"`
}
