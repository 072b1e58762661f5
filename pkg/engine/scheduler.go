package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/otelhelper"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/registry"
)

// maxStepsPerAdvance bounds a single advance pass so a cyclic graph with no
// wait node cannot spin the scheduler forever. Long-lived loops are built
// with delays, which suspend the run and reset the budget.
const maxStepsPerAdvance = 256

// advance executes the graph from nodeID until the run suspends, finishes
// or fails. The caller must hold the latest persisted version of the run.
func (e *Engine) advance(ctx context.Context, run *models.Run, automation *models.Automation, nodeID string) (*models.Run, error) {
	for steps := 0; ; steps++ {
		if steps >= maxStepsPerAdvance {
			return e.finish(ctx, run, models.RunStatusFailed,
				fmt.Sprintf("step budget exhausted after %d nodes, graph likely cycles without a delay", steps))
		}

		node := automation.NodeByID(nodeID)
		if node == nil {
			return e.finish(ctx, run, models.RunStatusFailed,
				fmt.Sprintf("edge points to missing node %s", nodeID))
		}

		updated, stop, err := e.executeNode(ctx, run, automation, node)
		if err != nil {
			return run, err
		}

		if updated == nil {
			// A concurrent writer moved the run out of running state.
			return run, nil
		}

		run = updated

		if stop {
			return run, nil
		}

		nodeID = run.CurrentNodeID
	}
}

// executeNode runs one node: open a step under the version guard, execute
// the node outside it, then settle the step and the transition in a second
// guarded write. Returns stop=true when the run suspended or finished; with
// stop=false, run.CurrentNodeID points at the next node to execute.
func (e *Engine) executeNode(ctx context.Context, run *models.Run, automation *models.Automation, node *models.Node) (*models.Run, bool, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute_node",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)
	defer span.End()

	startedAt := time.Now().UTC()

	swapped, err := e.swap(ctx, run, func(r *models.Run) error {
		r.CurrentNodeID = node.ID
		r.BeginStep(node, startedAt)

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, true, err
	}

	if swapped == nil {
		return nil, true, nil
	}

	run = swapped
	result := e.runExecutor(ctx, run, node)

	// The settle decision runs inside the mutator so a guarded retry
	// re-decides against fresh state; the automation graph itself is
	// immutable, so reading it there is safe.
	var (
		stop       bool
		finishedAs models.RunStatus
	)

	settledAt := time.Now().UTC()

	swapped, err = e.swap(ctx, run, func(r *models.Run) error {
		stop, finishedAs = false, ""

		r.FinishStep(result.StepStatus(), result.Output, result.Error, settledAt)
		r.MergeContext(result.ContextUpdates)

		switch {
		case result.Wait != nil:
			r.EnterWait(result.Wait)

			stop = true
		case result.Failed():
			if edge := automation.EdgeFrom(node.ID, models.HandleFailed); edge != nil {
				r.CurrentNodeID = edge.Target
			} else {
				finishedAs = models.RunStatusFailed
				r.Complete(models.RunStatusFailed, result.Error, settledAt)

				stop = true
			}
		default:
			handle := result.NextHandle
			if result.Skipped {
				handle = models.HandleDefault
			}

			if edge := automation.EdgeFrom(node.ID, handle); edge != nil {
				r.CurrentNodeID = edge.Target
			} else {
				finishedAs = models.RunStatusCompleted
				r.Complete(models.RunStatusCompleted, "", settledAt)

				stop = true
			}
		}

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, true, err
	}

	if swapped == nil {
		return nil, true, nil
	}

	run = swapped

	e.appendLog(ctx, run, node, result, startedAt, settledAt)
	e.publishNodeExecuted(ctx, run, node, result, settledAt.Sub(startedAt))

	switch {
	case result.Wait != nil:
		e.publish(ctx, run.ID, events.RunWaiting{
			BaseEvent: e.baseEvent(events.RunWaitingEvent, run),
			NodeID:    node.ID,
			WaitKind:  string(result.Wait.Kind),
			TimeoutAt: result.Wait.Deadline(),
		})
	case finishedAs == models.RunStatusCompleted:
		e.publish(ctx, run.ID, events.RunCompleted{
			BaseEvent: e.baseEvent(events.RunCompletedEvent, run),
			Duration:  run.UpdatedAt.Sub(run.CreatedAt),
		})
	case finishedAs == models.RunStatusFailed:
		e.publish(ctx, run.ID, events.RunFailed{
			BaseEvent: e.baseEvent(events.RunFailedEvent, run),
			NodeID:    node.ID,
			Error:     result.Error,
		})
	}

	return run, stop, nil
}

// runExecutor builds and executes the node's executor. An unknown node type
// is recorded as a skipped step, never as a failure: automations created by
// a newer editor must keep flowing through older engines.
func (e *Engine) runExecutor(ctx context.Context, run *models.Run, node *models.Node) *models.NodeResult {
	executor, err := e.registry.CreateExecutor(ctx, node)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownNodeType) {
			e.logger.WarnContext(ctx, "skipping unknown node type",
				"run_id", run.ID, "node_id", node.ID, "node_type", node.Type)

			return models.Skip("Unknown node type: " + node.Type)
		}

		return models.Fail(err.Error())
	}

	ectx := protocol.ExecutionContext{
		Run:    run,
		Lead:   e.loadLead(ctx, run),
		Labels: e.loadLabels(ctx, run.OrganizationID),
		Logger: e.logger.With("run_id", run.ID, "node_id", node.ID),
	}

	result, err := executor.Execute(ctx, ectx)
	if err != nil {
		return models.Fail(err.Error())
	}

	if result == nil {
		return models.Fail("executor returned no result")
	}

	return result
}

// loadLead refetches the lead snapshot before every node so a status update
// two nodes back is visible to the next condition.
func (e *Engine) loadLead(ctx context.Context, run *models.Run) *models.Lead {
	lead, err := e.collaborators.Leads.Get(ctx, run.LeadID)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to refresh lead snapshot",
			"run_id", run.ID, "lead_id", run.LeadID, "error", err)

		return &models.Lead{ID: run.LeadID, OrganizationID: run.OrganizationID}
	}

	return lead
}

func (e *Engine) loadLabels(ctx context.Context, orgID string) models.Labels {
	if e.collaborators.LabelSet == nil {
		return models.Labels{}
	}

	labels, err := e.collaborators.LabelSet.Labels(ctx, orgID)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to load labels", "organization_id", orgID, "error", err)

		return models.Labels{}
	}

	return labels
}

// finish moves the run to a terminal status under the version guard.
func (e *Engine) finish(ctx context.Context, run *models.Run, status models.RunStatus, errMsg string) (*models.Run, error) {
	swapped, err := e.swap(ctx, run, func(r *models.Run) error {
		r.Complete(status, errMsg, time.Now().UTC())

		return nil
	})
	if err != nil {
		return run, err
	}

	if swapped == nil {
		return run, nil
	}

	switch status {
	case models.RunStatusCompleted:
		e.publish(ctx, swapped.ID, events.RunCompleted{
			BaseEvent: e.baseEvent(events.RunCompletedEvent, swapped),
			Duration:  swapped.UpdatedAt.Sub(swapped.CreatedAt),
		})
	case models.RunStatusFailed:
		e.publish(ctx, swapped.ID, events.RunFailed{
			BaseEvent: e.baseEvent(events.RunFailedEvent, swapped),
			Error:     errMsg,
		})
	}

	return swapped, nil
}

// swap applies the mutation under the version guard, retrying after
// conflicts while the run is still running. Returns nil (and no error) when
// a concurrent writer moved the run out of the running state; the advance
// pass then stops quietly.
func (e *Engine) swap(ctx context.Context, run *models.Run, mutate persistence.RunMutator) (*models.Run, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		updated, err := e.persistence.Runs().CompareAndSwap(ctx, run.ID, run.Version, mutate)
		if err == nil {
			return updated, nil
		}

		if !errors.Is(err, persistence.ErrVersionConflict) {
			return nil, err
		}

		run, err = e.persistence.Runs().GetByID(ctx, run.ID)
		if err != nil {
			return nil, err
		}

		if run.Status != models.RunStatusRunning {
			return nil, nil
		}
	}

	return nil, persistence.NewRunError("advance", run.ID, persistence.ErrVersionConflict)
}

func (e *Engine) appendLog(ctx context.Context, run *models.Run, node *models.Node, result *models.NodeResult, startedAt, settledAt time.Time) {
	message := result.Reason
	if message == "" && result.Wait != nil {
		message = "waiting for " + string(result.Wait.Kind)
	}

	entry := &models.ExecutionLogEntry{
		ID:             uuid.New().String(),
		RunID:          run.ID,
		AutomationID:   run.AutomationID,
		LeadID:         run.LeadID,
		OrganizationID: run.OrganizationID,
		NodeID:         node.ID,
		NodeType:       node.Type,
		Status:         result.StepStatus(),
		Message:        message,
		Error:          result.Error,
		DurationMs:     settledAt.Sub(startedAt).Milliseconds(),
		Attempt:        run.Attempt(node.ID),
		Timestamp:      settledAt,
	}

	if err := e.persistence.ExecutionLog().Append(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "failed to append execution log entry",
			"run_id", run.ID, "node_id", node.ID, "error", err)
	}
}

func (e *Engine) publishNodeExecuted(ctx context.Context, run *models.Run, node *models.Node, result *models.NodeResult, duration time.Duration) {
	e.publish(ctx, run.ID, events.NodeExecuted{
		BaseEvent:  e.baseEvent(events.NodeExecutedEvent, run),
		NodeID:     node.ID,
		NodeType:   node.Type,
		Status:     string(result.StepStatus()),
		DurationMs: duration.Milliseconds(),
	})
}
