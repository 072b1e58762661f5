package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dripflow/dripflow/pkg/config"
	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/registry"
)

type APIHandlers struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	definitions *config.Validator
	validate    *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	eng *engine.Engine,
	p persistence.Persistence,
	definitions *config.Validator,
	validate *validator.Validate,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		persistence: p,
		definitions: definitions,
		validate:    validate,
		registry:    reg,
	}
}

// Register mounts every API route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	a := app.Group("/automations")
	a.Get("/", h.ListAutomations)
	a.Post("/", h.CreateAutomation)
	a.Get("/:id", h.GetAutomation)
	a.Patch("/:id", h.UpdateAutomation)
	a.Delete("/:id", h.DeleteAutomation)

	r := app.Group("/runs")
	r.Post("/", h.StartRun)
	r.Get("/:id", h.GetRun)
	r.Post("/:id/cancel", h.CancelRun)
	r.Get("/:id/log", h.GetRunLog)

	app.Get("/leads/:id/runs", h.ListLeadRuns)

	w := app.Group("/webhooks")
	w.Post("/whatsapp", h.WhatsAppWebhook)
	w.Post("/voice", h.VoiceWebhook)

	app.Post("/tasks/:id/complete", h.CompleteTask)

	app.Get("/node-types", h.NodeTypes)
	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) ListAutomations(c fiber.Ctx) error {
	automations, err := h.persistence.Automations().List(c.Context(), c.Query("organization_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"automations": automations})
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	automation := &models.Automation{
		ID:             uuid.New().String(),
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         models.AutomationStatusDraft,
		Trigger:        req.Trigger,
		Nodes:          req.Nodes,
		Edges:          req.Edges,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.definitions.Validate(automation); err != nil {
		return handleEngineError(c, err)
	}

	if err := h.persistence.Automations().Save(c.Context(), automation); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(automation)
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.persistence.Automations().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	var req UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	automation, err := h.persistence.Automations().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	if req.Name != nil {
		automation.Name = *req.Name
	}

	if req.Description != nil {
		automation.Description = *req.Description
	}

	if req.Status != nil {
		automation.Status = *req.Status
	}

	if req.Trigger != nil {
		automation.Trigger = *req.Trigger
	}

	if req.Nodes != nil {
		automation.Nodes = req.Nodes
	}

	if req.Edges != nil {
		automation.Edges = req.Edges
	}

	automation.UpdatedAt = time.Now().UTC()

	if err := h.definitions.Validate(automation); err != nil {
		return handleEngineError(c, err)
	}

	if err := h.persistence.Automations().Save(c.Context(), automation); err != nil {
		return internalError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	if err := h.persistence.Automations().Delete(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.engine.StartRun(c.Context(), req.AutomationID, req.LeadID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.engine.GetRun(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	var req CancelRunRequest
	// An empty body is a cancel without reason.
	_ = c.Bind().JSON(&req)

	run, err := h.engine.CancelRun(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetRunLog(c fiber.Ctx) error {
	entries, err := h.engine.ExecutionLog(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"entries": entries})
}

func (h *APIHandlers) ListLeadRuns(c fiber.Ctx) error {
	runs, err := h.persistence.Runs().ListByLead(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

// WhatsAppWebhook ingests an inbound message. It always answers 202: the
// gateway retries on non-2xx, and a message that matches no waiting run is
// not an error worth a retry storm.
func (h *APIHandlers) WhatsAppWebhook(c fiber.Ctx) error {
	var req WhatsAppWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	message := events.InboundMessage{
		ID:        req.MessageID,
		Channel:   "whatsapp",
		Phone:     req.Phone,
		Body:      req.Body,
		ButtonID:  req.ButtonID,
		Timestamp: req.Timestamp,
	}

	if err := h.engine.HandleInbound(c.Context(), message); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// VoiceWebhook ingests a call outcome from the voice provider.
func (h *APIHandlers) VoiceWebhook(c fiber.Ctx) error {
	var req VoiceWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	outcome := events.CallOutcome{
		ID:        uuid.New().String(),
		CallID:    req.CallID,
		Outcome:   req.Outcome,
		Timestamp: time.Now().UTC(),
	}

	if err := h.engine.HandleCallOutcome(c.Context(), outcome); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// CompleteTask resumes any run waiting on the task.
func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest
	// The outcome body is optional.
	_ = c.Bind().JSON(&req)

	completed := events.TaskCompleted{
		ID:        uuid.New().String(),
		TaskID:    c.Params("id"),
		Outcome:   req.Outcome,
		Timestamp: time.Now().UTC(),
	}

	if err := h.engine.HandleTaskCompleted(c.Context(), completed); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// NodeTypes lists the registered node types with their config schemas, so
// the automation editor can render forms without hardcoding them.
func (h *APIHandlers) NodeTypes(c fiber.Ctx) error {
	types := h.registry.Types()
	out := make([]fiber.Map, 0, len(types))

	for _, nodeType := range types {
		out = append(out, fiber.Map{
			"type":   nodeType,
			"schema": h.registry.Schema(nodeType),
		})
	}

	return c.JSON(fiber.Map{"node_types": out})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
