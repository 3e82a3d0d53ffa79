// Package partition decides which slice of an execution's key/value context a ready task
// reads and writes, and whether concurrently ready siblings share it.
package partition

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/models"
)

// SubContextMarker prefixes the root context key a nested route's slice is stored under.
const SubContextMarker = "__"

// Policy selects how concurrently ready tasks of one scope see their context.
type Policy int

const (
	// Independent gives every task of a multi-task batch its own deep copy.
	Independent Policy = iota
	// Shared lets every task of a scope read and write one map.
	Shared
)

func (p Policy) String() string {
	switch p {
	case Independent:
		return "independent"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// PolicyFor returns the policy selected by opts.
func PolicyFor(opts engine.Options) Policy {
	if opts.IndependentContext {
		return Independent
	}

	return Shared
}

// View is the context a task reads and writes.
type View interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Snapshot() map[string]any
}

// ScopeKey returns the root context key of route's slice.
func ScopeKey(route string) string {
	return SubContextMarker + route
}

// Scope returns the map route reads and writes: root itself for the top level, or the
// nested slice stored under ScopeKey(route), created on first use.
func Scope(root map[string]any, route string) map[string]any {
	if route == "" {
		return root
	}

	key := ScopeKey(route)
	if slice, ok := root[key].(map[string]any); ok {
		return slice
	}

	slice := make(map[string]any)
	root[key] = slice

	return slice
}

// Visible returns a copy of what route sees of root: the top level without nested slices,
// or the nested slice of route. A route without a slice sees nothing; root is not modified.
func Visible(root map[string]any, route string) map[string]any {
	scope := root
	if route != "" {
		scope, _ = root[ScopeKey(route)].(map[string]any)
	}

	visible := make(map[string]any, len(scope))

	for key, value := range scope {
		if route == "" && strings.HasPrefix(key, SubContextMarker) {
			continue
		}

		visible[key] = value
	}

	return visible
}

// Seed initialises route's slice with a deep copy of what parentRoute sees, plus extra.
// Keys already present in the slice are kept.
func Seed(root map[string]any, parentRoute, route string, extra map[string]any) error {
	copied, err := deepCopy(Visible(root, parentRoute))
	if err != nil {
		return fmt.Errorf("failed to copy context of route %q: %w", parentRoute, err)
	}

	slice := Scope(root, route)

	for key, value := range copied {
		if _, exists := slice[key]; !exists {
			slice[key] = value
		}
	}

	for key, value := range extra {
		slice[key] = value
	}

	return nil
}

// Partition builds one view per task of batch, keyed by task name.
func Partition(root map[string]any, batch []*models.TaskNode, policy Policy) (map[string]View, error) {
	byRoute := make(map[string][]*models.TaskNode)
	for _, task := range batch {
		byRoute[task.RouteName] = append(byRoute[task.RouteName], task)
	}

	routes := make([]string, 0, len(byRoute))
	for route := range byRoute {
		routes = append(routes, route)
	}

	sort.Strings(routes)

	views := make(map[string]View, len(batch))

	for _, route := range routes {
		tasks := byRoute[route]
		shared := newSharedView(Scope(root, route), route == "")

		if policy == Shared || len(tasks) == 1 {
			for _, task := range tasks {
				views[task.Name] = shared
			}

			continue
		}

		for _, task := range tasks {
			copied, err := deepCopy(shared.Snapshot())
			if err != nil {
				return nil, fmt.Errorf("failed to copy context of route %q for task %s: %w", route, task.Name, err)
			}

			views[task.Name] = &isolatedView{data: copied}
		}
	}

	return views, nil
}

// Merge writes result into task's scope of root.
func Merge(root map[string]any, task *models.TaskNode, result map[string]any) {
	scope := Scope(root, task.RouteName)

	for key, value := range result {
		if task.RouteName == "" && strings.HasPrefix(key, SubContextMarker) {
			continue
		}

		scope[key] = value
	}
}

func deepCopy(src map[string]any) (map[string]any, error) {
	data, err := sonic.Marshal(src)
	if err != nil {
		return nil, err
	}

	dst := make(map[string]any)

	err = sonic.Unmarshal(data, &dst)
	if err != nil {
		return nil, err
	}

	return dst, nil
}

type sharedView struct {
	mu         sync.RWMutex
	data       map[string]any
	hideNested bool
}

func newSharedView(data map[string]any, hideNested bool) *sharedView {
	return &sharedView{data: data, hideNested: hideNested}
}

func (v *sharedView) hidden(key string) bool {
	return v.hideNested && strings.HasPrefix(key, SubContextMarker)
}

func (v *sharedView) Get(key string) (any, bool) {
	if v.hidden(key) {
		return nil, false
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.data[key]

	return value, ok
}

func (v *sharedView) Set(key string, value any) {
	if v.hidden(key) {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.data[key] = value
}

func (v *sharedView) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snapshot := make(map[string]any, len(v.data))

	for key, value := range v.data {
		if v.hidden(key) {
			continue
		}

		snapshot[key] = value
	}

	return snapshot
}

type isolatedView struct {
	mu   sync.RWMutex
	data map[string]any
}

func (v *isolatedView) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.data[key]

	return value, ok
}

func (v *isolatedView) Set(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.data[key] = value
}

func (v *isolatedView) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snapshot := make(map[string]any, len(v.data))
	for key, value := range v.data {
		snapshot[key] = value
	}

	return snapshot
}
