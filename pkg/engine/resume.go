package engine

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/otelhelper"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// Resume causes, recorded on the RunResumed event.
const (
	causeMatched   = "matched"
	causeUnmatched = "unmatched"
	causeTimeout   = "timeout"
)

// errNotWaiting aborts a resume whose run already left the waiting state:
// the event was a duplicate or lost a race, both of which are no-ops.
var errNotWaiting = errors.New("run is not waiting")

// HandleInbound matches an inbound message against the run waiting on the
// sender's phone number. A message that matches no expected response still
// resumes the run along the default handle; a message that matches no
// waiting run at all is dropped.
func (e *Engine) HandleInbound(ctx context.Context, msg events.InboundMessage) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.handle_inbound",
		attribute.String(otelhelper.EventIDKey, msg.ID),
	)
	defer span.End()

	run, err := e.persistence.Runs().FindWaitingByPhone(ctx, msg.Phone)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			e.logger.DebugContext(ctx, "inbound message matched no waiting run", "phone", msg.Phone)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	handle, cause := matchResponse(run.Wait.Response, msg)

	return e.resumeRun(ctx, run, handle, cause)
}

// HandleCallOutcome resumes the run waiting on the call, routing by the
// reported outcome.
func (e *Engine) HandleCallOutcome(ctx context.Context, outcome events.CallOutcome) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.handle_call_outcome",
		attribute.String(otelhelper.EventIDKey, outcome.ID),
	)
	defer span.End()

	run, err := e.persistence.Runs().FindWaitingByCallID(ctx, outcome.CallID)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			e.logger.DebugContext(ctx, "call outcome matched no waiting run", "call_id", outcome.CallID)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	handle, cause := matchOutcome(run.Wait.Call, outcome.Outcome)

	return e.resumeRun(ctx, run, handle, cause)
}

// HandleTaskCompleted resumes the run waiting on the task. Task waits have
// a single continuation, so the default handle always applies.
func (e *Engine) HandleTaskCompleted(ctx context.Context, done events.TaskCompleted) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.handle_task_completed",
		attribute.String(otelhelper.EventIDKey, done.ID),
	)
	defer span.End()

	run, err := e.persistence.Runs().FindWaitingByTaskID(ctx, done.TaskID)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			e.logger.DebugContext(ctx, "task completion matched no waiting run", "task_id", done.TaskID)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	return e.resumeRun(ctx, run, models.HandleDefault, causeMatched)
}

// resumeExpired resumes a run whose wait deadline passed, following the
// timeout handle recorded on the wait descriptor. Delay nodes store the
// default handle there, so an expired delay just continues the graph.
func (e *Engine) resumeExpired(ctx context.Context, run *models.Run) error {
	if run.Wait == nil {
		return nil
	}

	var handle string

	switch run.Wait.Kind {
	case models.WaitKindResponse:
		handle = run.Wait.Response.TimeoutHandle
	case models.WaitKindCall:
		handle = run.Wait.Call.TimeoutHandle
	case models.WaitKindTask:
		// Task waits have no deadline; nothing to expire.
		return nil
	}

	if handle == "" {
		handle = models.HandleTimeout
	}

	return e.resumeRun(ctx, run, handle, causeTimeout)
}

// resumeRun clears the wait under the version guard and continues the graph
// along the resolved handle. At most one caller wins the guard; the losers
// observe the run out of its waiting state and return without effect.
func (e *Engine) resumeRun(ctx context.Context, run *models.Run, handle, cause string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.resume_run",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.HandleKey, handle),
		attribute.String(otelhelper.ResumeCauseKey, cause),
	)
	defer span.End()

	var nodeID string

	resumed, err := e.swapWaiting(ctx, run, func(r *models.Run) error {
		if !r.Status.Waiting() || r.Wait == nil {
			return errNotWaiting
		}

		nodeID = r.Wait.NodeID
		r.ClearWait()

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if resumed == nil {
		// Duplicate or stale event; another writer already moved the run.
		return nil
	}

	e.publish(ctx, resumed.ID, events.RunResumed{
		BaseEvent: e.baseEvent(events.RunResumedEvent, resumed),
		NodeID:    nodeID,
		Handle:    handle,
		Cause:     cause,
	})

	automation, err := e.persistence.Automations().GetByID(ctx, resumed.AutomationID)
	if err != nil {
		otelhelper.SetError(span, err)

		_, ferr := e.finish(ctx, resumed, models.RunStatusFailed, "automation disappeared: "+err.Error())

		return errors.Join(err, ferr)
	}

	edge := automation.EdgeFrom(nodeID, handle)
	if edge == nil {
		// No branch wired for this handle: the path simply ends here.
		_, err := e.finish(ctx, resumed, models.RunStatusCompleted, "")

		return err
	}

	_, err = e.advance(ctx, resumed, automation, edge.Target)

	return err
}

// swapWaiting is the resume variant of swap: conflicts are retried while
// the run is still waiting, and a run that left the waiting state (or a
// mutator reporting errNotWaiting) resolves to a quiet nil.
func (e *Engine) swapWaiting(ctx context.Context, run *models.Run, mutate persistence.RunMutator) (*models.Run, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		updated, err := e.persistence.Runs().CompareAndSwap(ctx, run.ID, run.Version, mutate)
		if err == nil {
			return updated, nil
		}

		if errors.Is(err, errNotWaiting) {
			return nil, nil
		}

		if !errors.Is(err, persistence.ErrVersionConflict) {
			return nil, err
		}

		run, err = e.persistence.Runs().GetByID(ctx, run.ID)
		if err != nil {
			return nil, err
		}

		if !run.Status.Waiting() {
			return nil, nil
		}
	}

	return nil, persistence.NewRunError("resume", run.ID, persistence.ErrVersionConflict)
}

// matchResponse resolves the handle for an inbound message: button replies
// match by button ID, exact replies by case-insensitive text. No match
// still resumes along the default handle so a free-form answer is never
// silently swallowed.
func matchResponse(wait *models.ResponseWait, msg events.InboundMessage) (string, string) {
	if wait == nil {
		return models.HandleDefault, causeUnmatched
	}

	body := strings.TrimSpace(msg.Body)

	for _, expected := range wait.Expected {
		switch expected.Type {
		case "button":
			if msg.ButtonID != "" && msg.ButtonID == expected.Value {
				return normalizedHandle(expected.NextHandle), causeMatched
			}
		default: // "exact"
			if body != "" && strings.EqualFold(body, expected.Value) {
				return normalizedHandle(expected.NextHandle), causeMatched
			}
		}
	}

	return models.HandleDefault, causeUnmatched
}

// matchOutcome resolves the handle for a call outcome.
func matchOutcome(wait *models.CallWait, outcome string) (string, string) {
	if wait == nil {
		return models.HandleDefault, causeUnmatched
	}

	for _, expected := range wait.Expected {
		if strings.EqualFold(expected.Outcome, outcome) {
			return normalizedHandle(expected.NextHandle), causeMatched
		}
	}

	return models.HandleDefault, causeUnmatched
}

func normalizedHandle(handle string) string {
	if handle == "" {
		return models.HandleDefault
	}

	return handle
}
