package models

import "time"

// RunStatus is the finite state machine of an automation run.
//
//	running -> waiting_for_response | waiting_for_call | waiting_for_task | completed | failed
//	waiting_* -> running (matched event or timeout) | cancelled
//	running <-> paused
//	any non-terminal -> cancelled
type RunStatus string

const (
	RunStatusRunning            RunStatus = "running"
	RunStatusWaitingForResponse RunStatus = "waiting_for_response"
	RunStatusWaitingForCall     RunStatus = "waiting_for_call"
	RunStatusWaitingForTask     RunStatus = "waiting_for_task"
	RunStatusPaused             RunStatus = "paused"
	RunStatusCompleted          RunStatus = "completed"
	RunStatusFailed             RunStatus = "failed"
	RunStatusCancelled          RunStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Waiting reports whether the run is suspended on an external event.
func (s RunStatus) Waiting() bool {
	return s == RunStatusWaitingForResponse || s == RunStatusWaitingForCall || s == RunStatusWaitingForTask
}

// StepStatus is the state of a single node attempt on the execution path.
type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusWaiting   StepStatus = "waiting"
	StepStatusSkipped   StepStatus = "skipped"
)

// ExecutionStep is one node attempt on a run's execution path. Entries are
// append-only: once a later node starts, earlier entries are never touched
// again; only the newest entry transitions running -> completed/failed/
// waiting/skipped.
type ExecutionStep struct {
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	NodeLabel   string         `json:"node_label,omitempty"`
	Status      StepStatus     `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Run is one execution instance of an automation against one lead. It is
// the only mutable document the engine owns; every persisted mutation goes
// through the version-guarded compare-and-swap on the run repository.
type Run struct {
	ID             string          `json:"id"`
	AutomationID   string          `json:"automation_id"   validate:"required"`
	LeadID         string          `json:"lead_id"         validate:"required"`
	OrganizationID string          `json:"organization_id" validate:"required"`
	Status         RunStatus       `json:"status"`
	CurrentNodeID  string          `json:"current_node_id,omitempty"`
	ExecutionPath  []ExecutionStep `json:"execution_path,omitempty"`
	Wait           *WaitDescriptor `json:"wait,omitempty"`
	Context        map[string]any  `json:"context,omitempty"`
	Error          string          `json:"error,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// BeginStep appends a running execution-path entry for the node.
func (r *Run) BeginStep(node *Node, now time.Time) {
	r.ExecutionPath = append(r.ExecutionPath, ExecutionStep{
		NodeID:    node.ID,
		NodeType:  node.Type,
		NodeLabel: node.Label,
		Status:    StepStatusRunning,
		StartedAt: now,
	})
}

// FinishStep settles the newest execution-path entry.
func (r *Run) FinishStep(status StepStatus, result map[string]any, errMsg string, now time.Time) {
	step := r.LastStep()
	if step == nil {
		return
	}

	step.Status = status
	step.Result = result
	step.Error = errMsg
	step.CompletedAt = &now
}

// LastStep returns the newest execution-path entry, or nil.
func (r *Run) LastStep() *ExecutionStep {
	if len(r.ExecutionPath) == 0 {
		return nil
	}

	return &r.ExecutionPath[len(r.ExecutionPath)-1]
}

// Attempt returns the 1-based attempt count for a node, counting existing
// execution-path entries (retry edges loop back to the same node).
func (r *Run) Attempt(nodeID string) int {
	attempt := 0

	for i := range r.ExecutionPath {
		if r.ExecutionPath[i].NodeID == nodeID {
			attempt++
		}
	}

	return attempt
}

// EnterWait suspends the run on the given descriptor.
func (r *Run) EnterWait(wait *WaitDescriptor) {
	r.Wait = wait
	r.Status = wait.Status()
}

// ClearWait drops the wait descriptor and puts the run back to running.
func (r *Run) ClearWait() {
	r.Wait = nil
	r.Status = RunStatusRunning
}

// SetContext writes one key into the run's scratch context.
func (r *Run) SetContext(key string, value any) {
	if r.Context == nil {
		r.Context = make(map[string]any)
	}

	r.Context[key] = value
}

// MergeContext folds executor context updates into the run.
func (r *Run) MergeContext(updates map[string]any) {
	for key, value := range updates {
		r.SetContext(key, value)
	}
}

// Complete marks the run terminal with the given status.
func (r *Run) Complete(status RunStatus, errMsg string, now time.Time) {
	r.Status = status
	r.Error = errMsg
	r.Wait = nil
	r.CompletedAt = &now
}
