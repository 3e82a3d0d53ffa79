// Package web provides the HTTP API over the execution scheduler.
package web

import (
	"sort"
	"time"

	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/models"
)

// SubmitExecutionRequest represents the request body for starting an execution.
type SubmitExecutionRequest struct {
	ExecutionID string                  `json:"execution_id,omitempty" validate:"omitempty,max=128,excludesall=/\\"`
	Definition  *models.GraphDefinition `json:"definition"             validate:"required"`
	Input       map[string]any          `json:"input,omitempty"`
}

// CompleteTaskRequest represents an executor's report for a dispatched or suspended task.
type CompleteTaskRequest struct {
	Status    models.Status  `json:"status"              validate:"required,oneof=SUCCEEDED FAILED SKIPPED KEY_SUCCEEDED STASHED"`
	Output    map[string]any `json:"output,omitempty"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	Extension map[string]any `json:"extension,omitempty"`
}

// UpdateOptionsRequest represents a partial update of the engine options.
type UpdateOptionsRequest struct {
	IndependentContext *bool `json:"independent_context,omitempty"`
	KeyPath            *bool `json:"key_path,omitempty"`
	MaxDepth           *int  `json:"max_depth,omitempty"           validate:"omitempty,min=0,max=64"`
}

// OptionsResponse represents the engine options in effect.
type OptionsResponse struct {
	IndependentContext bool `json:"independent_context"`
	KeyPath            bool `json:"key_path"`
	MaxDepth           int  `json:"max_depth"`
}

// TaskResponse represents one task node without its nested children.
type TaskResponse struct {
	Name           string                   `json:"name"`
	Category       models.Category          `json:"category"`
	Status         models.Status            `json:"status"`
	Parent         string                   `json:"parent,omitempty"`
	Dependencies   []string                 `json:"dependencies,omitempty"`
	SubGroupStatus map[string]models.Status `json:"sub_group_status,omitempty"`
	Invocation     *models.InvocationInfo   `json:"invocation,omitempty"`
}

// ExecutionResponse represents an execution graph with its tasks flattened.
type ExecutionResponse struct {
	ExecutionID string                 `json:"execution_id"`
	Name        string                 `json:"name"`
	Status      models.Status          `json:"status"`
	Invocation  *models.InvocationInfo `json:"invocation,omitempty"`
	Context     map[string]any         `json:"context,omitempty"`
	Tasks       []TaskResponse         `json:"tasks"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// FailedTasksResponse represents the failed tasks found within a bounded depth.
type FailedTasksResponse struct {
	ExecutionID string         `json:"execution_id"`
	Tasks       []TaskResponse `json:"tasks"`
	MaxDepth    int            `json:"max_depth"`
	Truncated   bool           `json:"truncated"`
}

// TransformTaskResponse converts a task node into its API form.
func TransformTaskResponse(task *models.TaskNode) TaskResponse {
	return TaskResponse{
		Name:           task.Name,
		Category:       task.Category(),
		Status:         task.Status,
		Parent:         task.Parent,
		Dependencies:   task.Dependencies,
		SubGroupStatus: task.SubGroupStatus,
		Invocation:     task.Invocation,
	}
}

// TransformExecutionResponse converts an execution graph into its API form, tasks sorted by
// name.
func TransformExecutionResponse(g *models.ExecutionGraph) ExecutionResponse {
	all := g.Flatten()

	tasks := make([]TaskResponse, 0, len(all))
	for _, task := range all {
		tasks = append(tasks, TransformTaskResponse(task))
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Name < tasks[j].Name
	})

	response := ExecutionResponse{
		ExecutionID: g.ExecutionID,
		Status:      g.Status,
		Invocation:  g.Invocation,
		Context:     g.Context,
		Tasks:       tasks,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}

	if g.Definition != nil {
		response.Name = g.Definition.Name
	}

	return response
}

func transformOptions(opts engine.Options) OptionsResponse {
	return OptionsResponse{
		IndependentContext: opts.IndependentContext,
		KeyPath:            opts.KeyPath,
		MaxDepth:           opts.MaxDepth,
	}
}
