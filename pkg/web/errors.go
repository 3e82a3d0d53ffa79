package web

import (
	"errors"

	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/dukex/flowengine/pkg/scheduler"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, kind string, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusConflict).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(err.Error())

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleSchedulerError maps scheduler, graph and store errors to problem responses.
func handleSchedulerError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsGraphNotFound(err):
		return notFound(c, "execution_not_found", "execution not found")
	case errors.Is(err, models.ErrTaskNotFound):
		return notFound(c, "task_not_found", err.Error())
	case graph.IsMalformedGraph(err), graph.IsIllegalGraphState(err):
		problem := problems.NewStatusProblem(fiber.StatusBadRequest).
			WithInstance(c.Path()).
			WithType("malformed_graph").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)
	case errors.Is(err, scheduler.ErrInvalidCompletion):
		return badRequest(c, err.Error())
	case errors.Is(err, scheduler.ErrExecutionFinished):
		return conflict(c, "execution_finished", err)
	case errors.Is(err, scheduler.ErrUnexpectedCompletion):
		return conflict(c, "unexpected_completion", err)
	case persistence.IsGraphTooLarge(err):
		problem := problems.NewStatusProblem(fiber.StatusRequestEntityTooLarge).
			WithInstance(c.Path()).
			WithType("graph_too_large").
			WithDetail(err.Error())

		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(problem)
	default:
		return internalError(c, err)
	}
}
