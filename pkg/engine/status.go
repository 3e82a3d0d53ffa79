package engine

import (
	"sort"
	"strings"

	"github.com/dukex/flowengine/pkg/models"
)

// Transition is one status change produced by Reconcile. Task is empty for the graph itself.
type Transition struct {
	Task string
	From models.Status
	To   models.Status
}

// AggregateParent derives a branch task's status from its sub-group statuses.
func AggregateParent(task *models.TaskNode) models.Status {
	groups := task.SubGroupStatus
	if len(groups) == 0 {
		return task.Status
	}

	allDone := true
	anyRunning := false
	anyFailed := false
	keyGroups := 0
	keyGroupsDone := true

	for index, status := range groups {
		if !status.IsSuccessOrSkip() {
			allDone = false
		}

		if status.IsRunningOrReady() {
			anyRunning = true
		}

		if status == models.StatusFailed {
			anyFailed = true
		}

		if task.SubGroupKeyFlag[index] {
			keyGroups++

			if !status.IsKeyCompleted() {
				keyGroupsDone = false
			}
		}
	}

	switch {
	case allDone:
		return models.StatusSucceeded
	case keyGroups > 0 && keyGroupsDone:
		return models.StatusKeySucceeded
	case anyRunning:
		return models.StatusRunning
	case anyFailed:
		return models.StatusFailed
	default:
		return task.Status
	}
}

// snapshot is the graph-wide state one status computation is evaluated against.
type snapshot struct {
	all     map[string]*models.TaskNode
	ready   map[string]struct{}
	keyPath bool
}

func newSnapshot(all map[string]*models.TaskNode, opts Options) *snapshot {
	s := &snapshot{
		all:     all,
		ready:   make(map[string]struct{}),
		keyPath: opts.KeyPath && KeyPathActive(all),
	}

	for _, task := range ReadyToRun(all, opts) {
		s.ready[task.Name] = struct{}{}
	}

	return s
}

// ScopeStatus derives the status of a scope, the top level of a graph or one sub-group,
// from the tasks in it. all is the full task index of the graph.
func ScopeStatus(previous models.Status, scope, all map[string]*models.TaskNode, opts Options) models.Status {
	return newSnapshot(all, opts).scopeStatus(previous, scope)
}

func (s *snapshot) scopeStatus(previous models.Status, scope map[string]*models.TaskNode) models.Status {
	allDone := true
	anyActive := false
	anyFailed := false

	for name, task := range scope {
		if !task.Status.IsSuccessOrSkip() {
			allDone = false
		}

		if _, ready := s.ready[name]; ready || task.Status.IsRunningOrReady() {
			anyActive = true
		}

		if task.Status == models.StatusFailed {
			anyFailed = true
		}
	}

	switch {
	case allDone:
		return models.StatusSucceeded
	case s.keyPath && !anyActive && !anyFailed:
		return models.StatusKeySucceeded
	case anyActive:
		return models.StatusRunning
	case anyFailed:
		return models.StatusFailed
	default:
		return previous
	}
}

// Reconcile recomputes every sub-group and branch status bottom up, then the graph status,
// and returns the transitions it applied.
func Reconcile(graph *models.ExecutionGraph, opts Options) []Transition {
	all := graph.Flatten()

	branches := make([]*models.TaskNode, 0)
	for _, task := range all {
		if len(task.SubGroupStatus) > 0 {
			branches = append(branches, task)
		}
	}

	// Deepest first so a parent sees its children's refreshed status.
	sort.Slice(branches, func(i, j int) bool {
		di, dj := depth(branches[i].Name), depth(branches[j].Name)
		if di != dj {
			return di > dj
		}

		return branches[i].Name < branches[j].Name
	})

	var transitions []Transition

	for _, branch := range branches {
		if !aggregatable(branch.Status) {
			continue
		}

		s := newSnapshot(all, opts)

		for index, status := range branch.SubGroupStatus {
			if status == models.StatusSkipped || status == models.StatusFailed {
				continue
			}

			branch.SubGroupStatus[index] = s.scopeStatus(status, branch.GroupChildren(index))
		}

		next := AggregateParent(branch)
		if next != branch.Status {
			transitions = append(transitions, Transition{Task: branch.Name, From: branch.Status, To: next})
			branch.Status = next
		}
	}

	next := newSnapshot(all, opts).scopeStatus(graph.Status, graph.Tasks)
	if next != graph.Status {
		transitions = append(transitions, Transition{From: graph.Status, To: next})
		graph.Status = next
	}

	return transitions
}

// aggregatable reports whether a branch task's status still follows its sub-groups.
func aggregatable(status models.Status) bool {
	switch status {
	case models.StatusReady, models.StatusRunning, models.StatusKeySucceeded, models.StatusStashed:
		return true
	case models.StatusNotStarted, models.StatusSucceeded, models.StatusFailed, models.StatusSkipped:
		return false
	default:
		return false
	}
}

func depth(name string) int {
	return strings.Count(name, models.RouteSeparator)
}
