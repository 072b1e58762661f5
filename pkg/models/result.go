package models

// NodeResult is what a node executor hands back to the scheduler. Failures
// are data, never Go errors: only infrastructure problems (persistence)
// cross the scheduler boundary as errors.
type NodeResult struct {
	Success        bool            `json:"success"`
	Skipped        bool            `json:"skipped,omitempty"`
	Reason         string          `json:"reason,omitempty"` // Why a node was skipped
	Error          string          `json:"error,omitempty"`
	NextHandle     string          `json:"next_handle,omitempty"` // Output handle to follow; empty means default
	Wait           *WaitDescriptor `json:"-"`                     // Non-nil suspends the run
	Output         map[string]any  `json:"output,omitempty"`
	ContextUpdates map[string]any  `json:"-"`
}

// Succeed builds a successful result carrying the executor's output.
func Succeed(output map[string]any) *NodeResult {
	return &NodeResult{Success: true, Output: output}
}

// SucceedTo builds a successful result that branches to a specific handle.
func SucceedTo(handle string, output map[string]any) *NodeResult {
	return &NodeResult{Success: true, NextHandle: handle, Output: output}
}

// Fail builds a failed result. The scheduler fails the run unless the graph
// wires a "failed" edge out of the node.
func Fail(errMsg string) *NodeResult {
	return &NodeResult{Success: false, Error: errMsg}
}

// Skip builds a skipped result: the node had no effect and the run advances
// along the default edge. Used for configuration gaps and unknown node types.
func Skip(reason string) *NodeResult {
	return &NodeResult{Skipped: true, Reason: reason}
}

// Suspend builds a result that parks the run on a wait descriptor.
func Suspend(wait *WaitDescriptor, output map[string]any) *NodeResult {
	return &NodeResult{Success: true, Wait: wait, Output: output}
}

// Failed reports whether the result is a plain failure.
func (r *NodeResult) Failed() bool {
	return !r.Success && !r.Skipped
}

// StepStatus maps the result onto an execution-path entry status.
func (r *NodeResult) StepStatus() StepStatus {
	switch {
	case r.Skipped:
		return StepStatusSkipped
	case r.Wait != nil:
		return StepStatusWaiting
	case r.Success:
		return StepStatusCompleted
	default:
		return StepStatusFailed
	}
}
