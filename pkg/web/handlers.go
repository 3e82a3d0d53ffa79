package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/flowengine/pkg/definition"
	"github.com/dukex/flowengine/pkg/dispatch"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Executions is the part of the scheduler the API drives.
type Executions interface {
	dispatch.Submitter
	dispatch.Completer

	Load(ctx context.Context, executionID string) (*models.ExecutionGraph, error)
	Options() *engine.OptionsHolder
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	executions Executions
	loader     *definition.Loader
	validator  *validator.Validate
}

func NewAPIHandlers(
	executions Executions,
	loader *definition.Loader,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		executions: executions,
		loader:     loader,
		validator:  validator,
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	e := router.Group("/executions")
	e.Post("/", h.SubmitExecution)
	e.Get("/:id", h.GetExecution)
	e.Get("/:id/failed", h.GetFailedTasks)
	e.Get("/:id/tasks/:name", h.GetTask)
	e.Post("/:id/tasks/:name/complete", h.CompleteTask)

	router.Get("/options", h.GetOptions)
	router.Patch("/options", h.UpdateOptions)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) SubmitExecution(c fiber.Ctx) error {
	var req SubmitExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.loader.Validate(req.Definition); err != nil {
		return handleSchedulerError(c, err)
	}

	g, err := h.executions.Submit(c.Context(), dispatch.Submission{
		ExecutionID: req.ExecutionID,
		Definition:  req.Definition,
		Input:       req.Input,
	})
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformExecutionResponse(g))
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	g, err := h.executions.Load(c.Context(), id)
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.JSON(TransformExecutionResponse(g))
}

// GetFailedTasks lists failed tasks down to the configured depth; the depth query
// parameter overrides it for one request.
func (h *APIHandlers) GetFailedTasks(c fiber.Ctx) error {
	id := c.Params("id")

	maxDepth := h.executions.Options().Load().MaxDepth

	if depthStr := c.Query("depth"); depthStr != "" {
		depth, err := strconv.Atoi(depthStr)
		if err != nil || depth < 0 {
			return badRequest(c, "Invalid depth: must be a non-negative integer")
		}

		maxDepth = depth
	}

	g, err := h.executions.Load(c.Context(), id)
	if err != nil {
		return handleSchedulerError(c, err)
	}

	failed, result := graph.FailedTasks(g, maxDepth)

	tasks := make([]TaskResponse, 0, len(failed))
	for _, task := range failed {
		tasks = append(tasks, TransformTaskResponse(task))
	}

	return c.JSON(FailedTasksResponse{
		ExecutionID: g.ExecutionID,
		Tasks:       tasks,
		MaxDepth:    result.MaxDepth,
		Truncated:   result.Truncated,
	})
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	g, err := h.executions.Load(c.Context(), c.Params("id"))
	if err != nil {
		return handleSchedulerError(c, err)
	}

	task, ok := g.Lookup(c.Params("name"))
	if !ok {
		return notFound(c, "task_not_found", "task not found")
	}

	return c.JSON(TransformTaskResponse(task))
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	id := c.Params("id")
	name := c.Params("name")

	var req CompleteTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.executions.Complete(c.Context(), dispatch.Completion{
		ExecutionID: id,
		TaskName:    name,
		Status:      req.Status,
		Output:      req.Output,
		Code:        req.Code,
		Message:     req.Message,
		FinishedAt:  time.Now().UTC(),
		Extension:   req.Extension,
	})
	if err != nil {
		return handleSchedulerError(c, err)
	}

	g, err := h.executions.Load(c.Context(), id)
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.JSON(TransformExecutionResponse(g))
}

func (h *APIHandlers) GetOptions(c fiber.Ctx) error {
	return c.JSON(transformOptions(h.executions.Options().Load()))
}

func (h *APIHandlers) UpdateOptions(c fiber.Ctx) error {
	var req UpdateOptionsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated := h.executions.Options().Update(func(opts *engine.Options) {
		if req.IndependentContext != nil {
			opts.IndependentContext = *req.IndependentContext
		}

		if req.KeyPath != nil {
			opts.KeyPath = *req.KeyPath
		}

		if req.MaxDepth != nil {
			opts.MaxDepth = *req.MaxDepth
		}
	})

	return c.JSON(transformOptions(updated))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck := "ok"

	status := "healthy"
	message := "flowengine API is healthy"
	httpStatus := http.StatusOK

	if err := h.executions.HealthCheck(c.Context()); err != nil {
		storeCheck = err.Error()
		status = "unhealthy"
		message = "flowengine API is unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
