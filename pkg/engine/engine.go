// Package engine is the run scheduler: it starts runs from lead events or
// API calls, walks the automation graph node by node, suspends runs on wait
// descriptors and resumes them when the matching external event arrives.
//
// Every persisted state transition goes through the run repository's
// version-guarded compare-and-swap, so duplicate resume events and
// concurrent engine instances settle to exactly one winner without locks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dripflow/dripflow/pkg/conditions"
	"github.com/dripflow/dripflow/pkg/eventbus"
	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/otelhelper"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/registry"
)

var (
	// ErrAutomationNotRunnable marks a start attempt against a draft or
	// archived automation.
	ErrAutomationNotRunnable = errors.New("automation is not active")

	// ErrRunFinished marks an operation against a run that already reached
	// a terminal status.
	ErrRunFinished = errors.New("run already finished")
)

// casRetries bounds how often a state transition is retried after losing
// the version guard to a concurrent writer.
const casRetries = 3

type Engine struct {
	persistence   persistence.Persistence
	bus           eventbus.EventPublisher
	registry      *registry.Registry
	collaborators protocol.Collaborators
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewEngine(
	p persistence.Persistence,
	bus eventbus.EventPublisher,
	reg *registry.Registry,
	collaborators protocol.Collaborators,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence:   p,
		bus:           bus,
		registry:      reg,
		collaborators: collaborators,
		logger:        logger.With("module", "engine"),
		tracer:        otel.Tracer("dripflow.engine"),
	}
}

// StartRun creates a run for the automation against the lead and executes
// the graph until it suspends or finishes. Each matching event starts its
// own run: the engine never deduplicates per lead and automation, retries
// and re-engagement loops are expressed in the graph itself.
func (e *Engine) StartRun(ctx context.Context, automationID, leadID string) (*models.Run, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start_run",
		attribute.String(otelhelper.AutomationIDKey, automationID),
		attribute.String(otelhelper.LeadIDKey, leadID),
	)
	defer span.End()

	automation, err := e.persistence.Automations().GetByID(ctx, automationID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if automation.Status != models.AutomationStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrAutomationNotRunnable, automationID, automation.Status)
	}

	lead, err := e.collaborators.Leads.Get(ctx, leadID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load lead %s: %w", leadID, err)
	}

	run := &models.Run{
		ID:             uuid.New().String(),
		AutomationID:   automation.ID,
		LeadID:         lead.ID,
		OrganizationID: automation.OrganizationID,
		Status:         models.RunStatusRunning,
	}

	if err := e.persistence.Runs().Create(ctx, run); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.RunIDKey, run.ID))

	e.publish(ctx, run.ID, events.RunStarted{
		BaseEvent:   e.baseEvent(events.RunStartedEvent, run),
		TriggerType: automation.Trigger.Type,
	})

	entry := automation.EntryNodeID()
	if entry == "" {
		return e.finish(ctx, run, models.RunStatusCompleted, "")
	}

	return e.advance(ctx, run, automation, entry)
}

// CancelRun moves a non-terminal run to cancelled. Cancelling a finished
// run is an error; the caller is racing a completion that already happened.
func (e *Engine) CancelRun(ctx context.Context, runID, reason string) (*models.Run, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.cancel_run",
		attribute.String(otelhelper.RunIDKey, runID),
	)
	defer span.End()

	run, err := e.persistence.Runs().GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		if run.Status.Terminal() {
			return nil, fmt.Errorf("%w: %s is %s", ErrRunFinished, runID, run.Status)
		}

		updated, err := e.persistence.Runs().CompareAndSwap(ctx, runID, run.Version, func(r *models.Run) error {
			r.Complete(models.RunStatusCancelled, reason, time.Now().UTC())

			return nil
		})
		if err == nil {
			e.publish(ctx, runID, events.RunCancelled{
				BaseEvent: e.baseEvent(events.RunCancelledEvent, updated),
				Reason:    reason,
			})

			return updated, nil
		}

		if !errors.Is(err, persistence.ErrVersionConflict) {
			otelhelper.SetError(span, err)

			return nil, err
		}

		run, err = e.persistence.Runs().GetByID(ctx, runID)
		if err != nil {
			return nil, err
		}
	}

	return nil, persistence.NewRunError("CancelRun", runID, persistence.ErrVersionConflict)
}

// GetRun returns the current run state.
func (e *Engine) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	return e.persistence.Runs().GetByID(ctx, runID)
}

// ExecutionLog returns the audit trail of a run, oldest entry first.
func (e *Engine) ExecutionLog(ctx context.Context, runID string) ([]models.ExecutionLogEntry, error) {
	if _, err := e.persistence.Runs().GetByID(ctx, runID); err != nil {
		return nil, err
	}

	return e.persistence.ExecutionLog().ListByRun(ctx, runID)
}

// HandleLeadEvent matches a lead domain event against every active
// automation of the organization and starts a run per match. A failure to
// start one run never blocks the others.
func (e *Engine) HandleLeadEvent(ctx context.Context, event *events.LeadEvent) error {
	if event.Lead == nil {
		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.handle_lead_event",
		attribute.String(otelhelper.TriggerTypeKey, string(event.Type)),
		attribute.String(otelhelper.LeadIDKey, event.Lead.ID),
	)
	defer span.End()

	automations, err := e.persistence.Automations().ListActive(ctx, event.OrganizationID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	var startErrs []error

	for _, automation := range automations {
		if !e.triggerMatches(automation, event) {
			continue
		}

		if _, err := e.StartRun(ctx, automation.ID, event.Lead.ID); err != nil {
			e.logger.ErrorContext(ctx, "failed to start run from lead event",
				"automation_id", automation.ID,
				"lead_id", event.Lead.ID,
				"error", err)
			startErrs = append(startErrs, err)
		}
	}

	return errors.Join(startErrs...)
}

// triggerMatches checks the trigger type and evaluates every trigger
// condition against the lead snapshot carried by the event.
func (e *Engine) triggerMatches(automation *models.Automation, event *events.LeadEvent) bool {
	if automation.Trigger.Type != string(event.Type) {
		return false
	}

	return conditions.All(event.Lead, automation.Trigger.Conditions)
}

func (e *Engine) baseEvent(eventType events.EventType, run *models.Run) events.BaseEvent {
	return events.BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		RunID:          run.ID,
		AutomationID:   run.AutomationID,
		LeadID:         run.LeadID,
		OrganizationID: run.OrganizationID,
	}
}

// publish sends a lifecycle event best-effort: the run state is already
// durable, a bus hiccup only costs observers a notification.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}
