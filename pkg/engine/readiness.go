package engine

import (
	"sort"

	"github.com/dukex/flowengine/pkg/models"
)

// ReadyToRun returns the not-started tasks of nodes that are eligible to run, sorted by name.
// nodes must contain every task the dependencies refer to; Flatten of the execution graph is
// the usual input. Callers must not re-submit a task that is already READY or RUNNING.
func ReadyToRun(nodes map[string]*models.TaskNode, opts Options) []*models.TaskNode {
	keyPath := opts.KeyPath && KeyPathActive(nodes)

	ready := make(map[string]*models.TaskNode)

	for _, task := range nodes {
		if task.Status != models.StatusNotStarted {
			continue
		}

		if !parentAdmits(task, nodes) {
			continue
		}

		if dependenciesSatisfied(task, nodes, keyPath) {
			ready[task.Name] = task
		}
	}

	forwardStreams(nodes, ready, keyPath)

	result := make([]*models.TaskNode, 0, len(ready))
	for _, task := range ready {
		result = append(result, task)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// KeyPathActive reports whether any task has reached a key-path status, which relaxes
// dependency satisfaction for key-callback dependencies across the whole computation.
func KeyPathActive(nodes map[string]*models.TaskNode) bool {
	for _, task := range nodes {
		if task.Status.IsKeyPath() {
			return true
		}
	}

	return false
}

// DependencySatisfied reports whether dep no longer blocks its ordinary dependents.
func DependencySatisfied(dep *models.TaskNode, keyPath bool) bool {
	if dep.Status.IsSuccessOrSkip() {
		return true
	}

	return keyPath && dep.IsKeyCallback() && dep.Status.IsKeyCompleted()
}

func dependenciesSatisfied(task *models.TaskNode, nodes map[string]*models.TaskNode, keyPath bool) bool {
	for _, name := range task.Dependencies {
		dep, ok := nodes[name]
		if !ok || !DependencySatisfied(dep, keyPath) {
			return false
		}
	}

	return true
}

// parentAdmits keeps the children of a branch that was stopped out of band from running.
func parentAdmits(task *models.TaskNode, nodes map[string]*models.TaskNode) bool {
	if task.Parent == "" {
		return true
	}

	parent, ok := nodes[task.Parent]
	if !ok {
		return true
	}

	switch parent.Status {
	case models.StatusReady, models.StatusRunning, models.StatusKeySucceeded, models.StatusStashed:
		return true
	case models.StatusNotStarted, models.StatusSucceeded, models.StatusFailed, models.StatusSkipped:
		return false
	default:
		return false
	}
}

// forwardStreams adds not-started stream-input tasks that can already consume the output of
// a running or eligible producer.
func forwardStreams(nodes map[string]*models.TaskNode, ready map[string]*models.TaskNode, keyPath bool) {
	frontier := make([]string, 0, len(ready))

	for name := range ready {
		frontier = append(frontier, name)
	}

	for name, task := range nodes {
		if task.Status.IsRunningOrReady() {
			frontier = append(frontier, name)
		}
	}

	sort.Strings(frontier)

	visited := make(map[string]struct{}, len(frontier))
	for _, name := range frontier {
		visited[name] = struct{}{}
	}

	inFrontier := func(task *models.TaskNode) bool {
		_, eligible := ready[task.Name]

		return eligible || task.Status.IsRunningOrReady()
	}

	for len(frontier) > 0 {
		current := nodes[frontier[0]]
		frontier = frontier[1:]

		if current == nil || opaque(current) {
			continue
		}

		for _, nextName := range current.Next {
			if _, seen := visited[nextName]; seen {
				continue
			}

			visited[nextName] = struct{}{}

			next, ok := nodes[nextName]
			if !ok {
				continue
			}

			if next.Status != models.StatusNotStarted {
				// Keep walking through producers that are already under way.
				if inFrontier(next) || next.Status.IsCompleted() {
					frontier = append(frontier, nextName)
				}

				continue
			}

			if !next.IsStreamInput() || !parentAdmits(next, nodes) {
				continue
			}

			if !streamFeedable(next, nodes, keyPath, inFrontier) {
				continue
			}

			if dependsOnPendingStream(next, nodes) {
				continue
			}

			ready[nextName] = next
		}
	}
}

// opaque reports whether a task hides its output from stream consumers: an unfinished fork.
func opaque(task *models.TaskNode) bool {
	return task.Category().IsFork() && !task.Status.IsCompleted()
}

// streamFeedable reports whether every dependency of task is either done or a producer that
// is under way and not an unfinished fork.
func streamFeedable(task *models.TaskNode, nodes map[string]*models.TaskNode, keyPath bool, inFrontier func(*models.TaskNode) bool) bool {
	for _, name := range task.Dependencies {
		dep, ok := nodes[name]
		if !ok {
			return false
		}

		if DependencySatisfied(dep, keyPath) {
			continue
		}

		if !inFrontier(dep) || opaque(dep) {
			return false
		}
	}

	return true
}

// dependsOnPendingStream reports whether task transitively depends, through unfinished
// tasks, on another stream-input task that has not started yet.
func dependsOnPendingStream(task *models.TaskNode, nodes map[string]*models.TaskNode) bool {
	visited := map[string]struct{}{task.Name: {}}
	stack := append([]string(nil), task.Dependencies...)

	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[name]; seen {
			continue
		}

		visited[name] = struct{}{}

		dep, ok := nodes[name]
		if !ok || dep.Status.IsCompleted() {
			continue
		}

		if dep.IsStreamInput() && dep.Status == models.StatusNotStarted {
			return true
		}

		stack = append(stack, dep.Dependencies...)
	}

	return false
}
