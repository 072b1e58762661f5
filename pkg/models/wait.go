package models

import (
	"errors"
	"time"
)

// WaitKind tags the one-of shape of a wait descriptor.
type WaitKind string

const (
	WaitKindResponse WaitKind = "response"
	WaitKindCall     WaitKind = "call"
	WaitKindTask     WaitKind = "task"
)

// ExpectedResponse maps an inbound message to the output handle to follow.
type ExpectedResponse struct {
	Type       string `json:"type"` // "exact" or "button"
	Value      string `json:"value"`
	NextHandle string `json:"next_handle"`
}

// ExpectedOutcome maps an AI-call outcome to the output handle to follow.
type ExpectedOutcome struct {
	Outcome    string `json:"outcome"`
	NextHandle string `json:"next_handle"`
}

// ResponseWait waits for an inbound message on a channel.
type ResponseWait struct {
	Channel       string             `json:"channel"`
	Phone         string             `json:"phone,omitempty"`
	Expected      []ExpectedResponse `json:"expected,omitempty"`
	TimeoutAt     *time.Time         `json:"timeout_at,omitempty"`
	TimeoutHandle string             `json:"timeout_handle,omitempty"`
}

// CallWait waits for the outcome webhook of an AI voice call.
type CallWait struct {
	CallID        string            `json:"call_id"`
	Expected      []ExpectedOutcome `json:"expected,omitempty"`
	TimeoutAt     *time.Time        `json:"timeout_at,omitempty"`
	TimeoutHandle string            `json:"timeout_handle,omitempty"`
}

// TaskWait waits for a human agent to complete a task.
type TaskWait struct {
	TaskID    string    `json:"task_id"`
	StartedAt time.Time `json:"started_at"`
}

// WaitDescriptor records what external event a suspended run is waiting
// for. Exactly one of the three shapes is populated, matching Kind; the
// constructors below are the only way the engine builds one, so two
// populated shapes are unrepresentable in practice and Validate enforces
// it on anything loaded from storage.
type WaitDescriptor struct {
	Kind     WaitKind      `json:"kind"`
	NodeID   string        `json:"node_id"`
	Response *ResponseWait `json:"response,omitempty"`
	Call     *CallWait     `json:"call,omitempty"`
	Task     *TaskWait     `json:"task,omitempty"`
}

var ErrMalformedWait = errors.New("wait descriptor does not have exactly one populated shape")

// ChannelInternal marks response-waits that no inbound message may match;
// delays use it so only the timeout sweeper can resume them.
const ChannelInternal = "internal"

// NewResponseWait builds a response-wait descriptor for the given node.
func NewResponseWait(nodeID string, wait ResponseWait) *WaitDescriptor {
	return &WaitDescriptor{Kind: WaitKindResponse, NodeID: nodeID, Response: &wait}
}

// NewCallWait builds a call-wait descriptor for the given node.
func NewCallWait(nodeID string, wait CallWait) *WaitDescriptor {
	return &WaitDescriptor{Kind: WaitKindCall, NodeID: nodeID, Call: &wait}
}

// NewTaskWait builds a task-wait descriptor for the given node.
func NewTaskWait(nodeID string, wait TaskWait) *WaitDescriptor {
	return &WaitDescriptor{Kind: WaitKindTask, NodeID: nodeID, Task: &wait}
}

// Status returns the run status corresponding to the wait kind.
func (w *WaitDescriptor) Status() RunStatus {
	switch w.Kind {
	case WaitKindResponse:
		return RunStatusWaitingForResponse
	case WaitKindCall:
		return RunStatusWaitingForCall
	case WaitKindTask:
		return RunStatusWaitingForTask
	}

	return RunStatusFailed
}

// Deadline returns the wait timeout, or nil when the wait has none
// (task waits never time out on their own).
func (w *WaitDescriptor) Deadline() *time.Time {
	switch w.Kind {
	case WaitKindResponse:
		if w.Response != nil {
			return w.Response.TimeoutAt
		}
	case WaitKindCall:
		if w.Call != nil {
			return w.Call.TimeoutAt
		}
	case WaitKindTask:
	}

	return nil
}

// Validate checks the one-of invariant on a descriptor loaded from storage.
func (w *WaitDescriptor) Validate() error {
	populated := 0
	if w.Response != nil {
		populated++
	}

	if w.Call != nil {
		populated++
	}

	if w.Task != nil {
		populated++
	}

	if populated != 1 {
		return ErrMalformedWait
	}

	switch w.Kind {
	case WaitKindResponse:
		if w.Response == nil {
			return ErrMalformedWait
		}
	case WaitKindCall:
		if w.Call == nil {
			return ErrMalformedWait
		}
	case WaitKindTask:
		if w.Task == nil {
			return ErrMalformedWait
		}
	default:
		return ErrMalformedWait
	}

	return nil
}
