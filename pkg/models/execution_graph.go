package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateTaskName indicates two task nodes of one graph share a name.
	ErrDuplicateTaskName = errors.New("duplicate task name")
	// ErrTaskNotFound indicates a task name that does not resolve in the graph.
	ErrTaskNotFound = errors.New("task not found")
)

// ExecutionGraph is the root aggregate of one submitted run.
type ExecutionGraph struct {
	ExecutionID string               `json:"execution_id"`
	Definition  *GraphDefinition     `json:"definition"`
	Status      Status               `json:"status"`
	Invocation  *InvocationInfo      `json:"invocation,omitempty"`
	Tasks       map[string]*TaskNode `json:"tasks"`
	Context     map[string]any       `json:"context"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Flatten returns every task node of the graph, nested ones included, keyed by name.
func (g *ExecutionGraph) Flatten() map[string]*TaskNode {
	all := make(map[string]*TaskNode)

	stack := make([]*TaskNode, 0, len(g.Tasks))
	for _, task := range g.Tasks {
		stack = append(stack, task)
	}

	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		all[task.Name] = task
		for _, child := range task.Children {
			stack = append(stack, child)
		}
	}

	return all
}

// Lookup finds a task node anywhere in the graph.
func (g *ExecutionGraph) Lookup(name string) (*TaskNode, bool) {
	scope := g.Tasks

	// Walk down from the top-level ancestor along the route chain.
	chain := []string{name}
	for route := RouteName(name); route != ""; route = RouteName(ParentName(route)) {
		chain = append(chain, ParentName(route))
	}

	for i := len(chain) - 1; i >= 0; i-- {
		task, ok := scope[chain[i]]
		if !ok {
			return nil, false
		}

		if i == 0 {
			return task, true
		}

		scope = task.Children
	}

	return nil, false
}

// Scope returns the sibling map that task lives in.
func (g *ExecutionGraph) Scope(task *TaskNode) map[string]*TaskNode {
	if task.Parent == "" {
		return g.Tasks
	}

	parent, ok := g.Lookup(task.Parent)
	if !ok {
		return nil
	}

	group := make(map[string]*TaskNode)
	for name, child := range parent.Children {
		if child.RouteName == task.RouteName {
			group[name] = child
		}
	}

	return group
}

// ValidateUniqueNames fails with ErrDuplicateTaskName when a name occurs twice in the graph
// or a node is stored under a key different from its name.
func ValidateUniqueNames(g *ExecutionGraph) error {
	seen := make(map[string]struct{})

	type entry struct {
		key  string
		node *TaskNode
	}

	stack := make([]entry, 0, len(g.Tasks))
	for key, task := range g.Tasks {
		stack = append(stack, entry{key: key, node: task})
	}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if e.node == nil {
			return fmt.Errorf("%w: nil node stored under %q", ErrTaskNotFound, e.key)
		}

		if e.key != e.node.Name {
			return fmt.Errorf("%w: node %q stored under %q", ErrDuplicateTaskName, e.node.Name, e.key)
		}

		if _, dup := seen[e.node.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateTaskName, e.node.Name)
		}

		seen[e.node.Name] = struct{}{}

		for key, child := range e.node.Children {
			stack = append(stack, entry{key: key, node: child})
		}
	}

	return nil
}

// ReplaceTasks swaps the stored nodes for the given updated nodes, matched by name.
func (g *ExecutionGraph) ReplaceTasks(tasks []*TaskNode) error {
	for _, task := range tasks {
		if task.Parent == "" {
			if _, ok := g.Tasks[task.Name]; !ok {
				return fmt.Errorf("%w: %s", ErrTaskNotFound, task.Name)
			}

			g.Tasks[task.Name] = task

			continue
		}

		parent, ok := g.Lookup(task.Parent)
		if !ok {
			return fmt.Errorf("%w: parent %s of %s", ErrTaskNotFound, task.Parent, task.Name)
		}

		if parent.Children == nil {
			parent.Children = make(map[string]*TaskNode)
		}

		parent.Children[task.Name] = task
	}

	return nil
}

// IsTerminal reports whether the graph reached a status that ends its run.
func (g *ExecutionGraph) IsTerminal() bool {
	return g.Status == StatusSucceeded || g.Status == StatusFailed
}
