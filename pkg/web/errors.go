package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dripflow/dripflow/pkg/config"
	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine and persistence errors onto problem
// responses.
func handleEngineError(c fiber.Ctx, err error) error {
	var validationErr *config.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return badRequest(c, validationErr.Error())

	case errors.Is(err, persistence.ErrAutomationNotFound):
		return notFound(c, "automation not found")

	case errors.Is(err, persistence.ErrRunNotFound):
		return notFound(c, "run not found")

	case errors.Is(err, engine.ErrAutomationNotRunnable):
		return conflict(c, err.Error())

	case errors.Is(err, engine.ErrRunFinished):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}
