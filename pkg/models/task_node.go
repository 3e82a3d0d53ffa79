package models

import "time"

// InvocationInfo records what the dispatch layer reported for a task.
type InvocationInfo struct {
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Extension  map[string]any `json:"extension,omitempty"`
}

// TaskNode is one instantiated occurrence of a TaskDefinition inside an ExecutionGraph.
//
// Parent, Next and Dependencies hold task names resolved through the owning graph; only
// Children owns nodes.
type TaskNode struct {
	Name            string               `json:"name"`
	RouteName       string               `json:"route_name,omitempty"`
	Definition      *TaskDefinition      `json:"definition"`
	Status          Status               `json:"status"`
	SubGroupStatus  map[string]Status    `json:"sub_group_status,omitempty"`
	SubGroupKeyFlag map[string]bool      `json:"sub_group_key_flag,omitempty"`
	Parent          string               `json:"parent,omitempty"`
	Children        map[string]*TaskNode `json:"children,omitempty"`
	Next            []string             `json:"next,omitempty"`
	Dependencies    []string             `json:"dependencies,omitempty"`
	Invocation      *InvocationInfo      `json:"invocation,omitempty"`
}

// BaseName returns the definition name the node was instantiated from.
func (n *TaskNode) BaseName() string {
	return BaseName(n.Name)
}

// Category returns the node's category tag.
func (n *TaskNode) Category() Category {
	if n.Definition == nil {
		return ""
	}

	return n.Definition.Category
}

// IsStreamInput reports whether the node consumes a streamed input.
func (n *TaskNode) IsStreamInput() bool {
	return n.Definition.IsStreamInput()
}

// IsKeyCallback reports whether the node is declared as a key-path node.
func (n *TaskNode) IsKeyCallback() bool {
	return n.Definition != nil && n.Definition.KeyCallback
}

// IsTolerant reports whether a failure of the node is downgraded to skipped.
func (n *TaskNode) IsTolerant() bool {
	return n.Definition != nil && n.Definition.Tolerance
}

// GroupChildren returns the children that belong to sub-group groupIndex.
func (n *TaskNode) GroupChildren(groupIndex string) map[string]*TaskNode {
	route := BuildRoute(n.Name, groupIndex)
	group := make(map[string]*TaskNode)

	for name, child := range n.Children {
		if child.RouteName == route {
			group[name] = child
		}
	}

	return group
}

// EnsureInvocation returns the node's invocation record, creating it when missing.
func (n *TaskNode) EnsureInvocation() *InvocationInfo {
	if n.Invocation == nil {
		n.Invocation = &InvocationInfo{}
	}

	return n.Invocation
}
