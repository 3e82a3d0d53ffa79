package graph

import (
	"sort"

	"github.com/dukex/flowengine/pkg/models"
)

// WalkResult reports whether a bounded walk had to stop descending.
type WalkResult struct {
	Truncated bool
	MaxDepth  int
}

// Walk visits tasks and their descendants breadth first, top-level tasks at depth 0. Nodes
// nested deeper than maxDepth are not visited; the walk then reports Truncated instead of
// failing. A maxDepth below zero falls back to DefaultMaxDepth. Visiting stops early when
// visit returns false.
func Walk(tasks map[string]*models.TaskNode, maxDepth int, visit func(task *models.TaskNode, depth int) bool) WalkResult {
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}

	type item struct {
		task  *models.TaskNode
		depth int
	}

	result := WalkResult{MaxDepth: maxDepth}
	queue := make([]item, 0, len(tasks))

	for _, name := range sortedNames(tasks) {
		queue = append(queue, item{task: tasks[name], depth: 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if !visit(current.task, current.depth) {
			return result
		}

		if len(current.task.Children) == 0 {
			continue
		}

		if current.depth+1 > maxDepth {
			result.Truncated = true

			continue
		}

		for _, name := range sortedNames(current.task.Children) {
			queue = append(queue, item{task: current.task.Children[name], depth: current.depth + 1})
		}
	}

	return result
}

// FailedTasks collects every failed task of the graph within maxDepth levels of nesting.
func FailedTasks(graph *models.ExecutionGraph, maxDepth int) ([]*models.TaskNode, WalkResult) {
	var failed []*models.TaskNode

	result := Walk(graph.Tasks, maxDepth, func(task *models.TaskNode, _ int) bool {
		if task.Status == models.StatusFailed {
			failed = append(failed, task)
		}

		return true
	})

	return failed, result
}

// FindTask looks a task up by name within maxDepth levels of nesting.
func FindTask(graph *models.ExecutionGraph, name string, maxDepth int) (*models.TaskNode, WalkResult) {
	var found *models.TaskNode

	result := Walk(graph.Tasks, maxDepth, func(task *models.TaskNode, _ int) bool {
		if task.Name == name {
			found = task

			return false
		}

		return true
	})

	return found, result
}

// Resources collects the distinct executor resources referenced by dispatched tasks within
// maxDepth levels of nesting.
func Resources(graph *models.ExecutionGraph, maxDepth int) ([]string, WalkResult) {
	seen := make(map[string]struct{})

	result := Walk(graph.Tasks, maxDepth, func(task *models.TaskNode, _ int) bool {
		if task.Definition != nil && task.Definition.Resource != "" {
			seen[task.Definition.Resource] = struct{}{}
		}

		return true
	})

	resources := make([]string, 0, len(seen))
	for resource := range seen {
		resources = append(resources, resource)
	}

	sort.Strings(resources)

	return resources, result
}

func sortedNames(tasks map[string]*models.TaskNode) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
