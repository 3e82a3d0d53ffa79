// Package graph expands task definitions into live task node graphs and walks them.
package graph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowengine/pkg/models"
)

// DefaultMaxDepth bounds diagnostic tree walks when no explicit depth is configured.
const DefaultMaxDepth = 3

// Builder turns task definitions into task nodes.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a new graph builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{
		logger: logger.With("module", "graph_builder"),
	}
}

// Build instantiates defs in one scope. Parent and groupIndex must be both set, for a
// sub-group, or both empty, for the top level. The returned map is keyed by task name and
// has every next/dependency edge of the scope resolved; next names that do not resolve in
// the scope are skipped.
func (b *Builder) Build(defs []*models.TaskDefinition, parent *models.TaskNode, groupIndex *string) (map[string]*models.TaskNode, error) {
	if (parent == nil) != (groupIndex == nil) {
		return nil, &Error{Op: "Build", Err: fmt.Errorf("%w: parent and group index must be both present or both absent", ErrIllegalGraphState)}
	}

	route := ""
	parentName := ""

	if parent != nil {
		parentName = parent.Name
		route = models.BuildRoute(parent.Name, *groupIndex)
	}

	tasks := make(map[string]*models.TaskNode, len(defs))

	for _, def := range defs {
		if def == nil {
			return nil, &Error{Op: "Build", Task: route, Err: fmt.Errorf("%w: nil task definition", ErrMalformedGraph)}
		}

		err := checkDefinition(def)
		if err != nil {
			return nil, &Error{Op: "Build", Task: def.Name, Err: err}
		}

		name := models.BuildName(route, def.Name)
		if _, dup := tasks[name]; dup {
			return nil, &Error{Op: "Build", Task: name, Err: fmt.Errorf("%w: %w", ErrMalformedGraph, models.ErrDuplicateTaskName)}
		}

		tasks[name] = &models.TaskNode{
			Name:       name,
			RouteName:  route,
			Definition: def,
			Status:     models.StatusNotStarted,
			Parent:     parentName,
		}
	}

	for _, def := range defs {
		current := tasks[models.BuildName(route, def.Name)]

		for _, nextBase := range def.Next {
			next, ok := tasks[models.BuildName(route, nextBase)]
			if !ok {
				b.logger.Debug("Skipping unresolved next reference", "task", current.Name, "next", nextBase)

				continue
			}

			current.Next = append(current.Next, next.Name)
			next.Dependencies = append(next.Dependencies, current.Name)
		}
	}

	return tasks, nil
}

// BuildGraph creates the top-level task map of a new execution graph.
func (b *Builder) BuildGraph(executionID string, def *models.GraphDefinition) (*models.ExecutionGraph, error) {
	if def == nil {
		return nil, &Error{Op: "BuildGraph", Task: executionID, Err: fmt.Errorf("%w: nil graph definition", ErrMalformedGraph)}
	}

	tasks, err := b.Build(def.Tasks, nil, nil)
	if err != nil {
		return nil, err
	}

	return &models.ExecutionGraph{
		ExecutionID: executionID,
		Definition:  def,
		Status:      models.StatusNotStarted,
		Tasks:       tasks,
		Context:     make(map[string]any),
	}, nil
}

// ExpandGroup lazily builds sub-group groupIndex of parent from defs and attaches it to the
// parent's children. Expanding a group that already exists fails so nodes are never
// resurrected.
func (b *Builder) ExpandGroup(parent *models.TaskNode, groupIndex string, defs []*models.TaskDefinition, key bool) (map[string]*models.TaskNode, error) {
	if parent == nil {
		return nil, &Error{Op: "ExpandGroup", Err: fmt.Errorf("%w: nil parent", ErrIllegalGraphState)}
	}

	if !parent.Category().IsBranch() {
		return nil, &Error{Op: "ExpandGroup", Task: parent.Name, Err: fmt.Errorf("%w: %s tasks have no sub-groups", ErrIllegalGraphState, parent.Category())}
	}

	if _, exists := parent.SubGroupStatus[groupIndex]; exists {
		return nil, &Error{Op: "ExpandGroup", Task: models.BuildRoute(parent.Name, groupIndex), Err: fmt.Errorf("%w: group already expanded", ErrIllegalGraphState)}
	}

	group, err := b.Build(defs, parent, &groupIndex)
	if err != nil {
		return nil, err
	}

	if parent.Children == nil {
		parent.Children = make(map[string]*models.TaskNode)
	}

	if parent.SubGroupStatus == nil {
		parent.SubGroupStatus = make(map[string]models.Status)
	}

	if parent.SubGroupKeyFlag == nil {
		parent.SubGroupKeyFlag = make(map[string]bool)
	}

	for name, task := range group {
		parent.Children[name] = task
	}

	parent.SubGroupStatus[groupIndex] = models.StatusNotStarted
	if len(group) == 0 {
		parent.SubGroupStatus[groupIndex] = models.StatusSucceeded
	}

	parent.SubGroupKeyFlag[groupIndex] = key

	return group, nil
}

func checkDefinition(def *models.TaskDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: task without a name", ErrMalformedGraph)
	}

	if strings.Contains(def.Name, models.RouteSeparator) {
		return fmt.Errorf("%w: task name %q contains %q", ErrMalformedGraph, def.Name, models.RouteSeparator)
	}

	err := def.Category.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedGraph, err)
	}

	return nil
}
