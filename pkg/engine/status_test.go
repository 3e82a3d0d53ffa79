package engine

import (
	"testing"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateParent(t *testing.T) {
	tests := []struct {
		name     string
		current  models.Status
		groups   map[string]models.Status
		keys     map[string]bool
		expected models.Status
	}{
		{
			name:     "no groups keeps status",
			current:  models.StatusRunning,
			expected: models.StatusRunning,
		},
		{
			name:     "all done",
			current:  models.StatusRunning,
			groups:   map[string]models.Status{"0": models.StatusSucceeded, "1": models.StatusSkipped},
			expected: models.StatusSucceeded,
		},
		{
			name:    "key groups done",
			current: models.StatusRunning,
			groups: map[string]models.Status{
				"0": models.StatusSucceeded,
				"1": models.StatusKeySucceeded,
				"2": models.StatusRunning,
			},
			keys:     map[string]bool{"0": true, "1": true},
			expected: models.StatusKeySucceeded,
		},
		{
			name:     "key group pending",
			current:  models.StatusRunning,
			groups:   map[string]models.Status{"0": models.StatusRunning, "1": models.StatusSucceeded},
			keys:     map[string]bool{"0": true},
			expected: models.StatusRunning,
		},
		{
			name:     "no key groups",
			current:  models.StatusRunning,
			groups:   map[string]models.Status{"0": models.StatusSucceeded, "1": models.StatusNotStarted},
			expected: models.StatusRunning,
		},
		{
			name:     "running wins over failed",
			current:  models.StatusRunning,
			groups:   map[string]models.Status{"0": models.StatusFailed, "1": models.StatusReady},
			expected: models.StatusRunning,
		},
		{
			name:     "failed",
			current:  models.StatusRunning,
			groups:   map[string]models.Status{"0": models.StatusFailed, "1": models.StatusSucceeded},
			expected: models.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &models.TaskNode{Name: "p", Status: tt.current, SubGroupStatus: tt.groups, SubGroupKeyFlag: tt.keys}

			assert.Equal(t, tt.expected, AggregateParent(task))
		})
	}
}

func TestScopeStatus(t *testing.T) {
	t.Run("all done", func(t *testing.T) {
		nodes := index(node("a", models.StatusSucceeded, models.CategoryCompute), node("b", models.StatusSkipped, models.CategoryPass))

		assert.Equal(t, models.StatusSucceeded, ScopeStatus(models.StatusRunning, nodes, nodes, DefaultOptions()))
	})

	t.Run("failed with nothing left to run", func(t *testing.T) {
		a := node("a", models.StatusFailed, models.CategoryCompute)
		b := node("b", models.StatusNotStarted, models.CategoryCompute)
		link(a, b)
		nodes := index(a, b)

		assert.Equal(t, models.StatusFailed, ScopeStatus(models.StatusRunning, nodes, nodes, DefaultOptions()))
	})

	t.Run("failed while a sibling can still run", func(t *testing.T) {
		nodes := index(node("a", models.StatusFailed, models.CategoryCompute), node("b", models.StatusNotStarted, models.CategoryCompute))

		assert.Equal(t, models.StatusRunning, ScopeStatus(models.StatusRunning, nodes, nodes, DefaultOptions()))
	})

	t.Run("key path settled", func(t *testing.T) {
		a := node("a", models.StatusKeySucceeded, models.CategoryForeach)
		b := node("b", models.StatusNotStarted, models.CategoryCompute)
		link(a, b)
		nodes := index(a, b)

		assert.Equal(t, models.StatusKeySucceeded, ScopeStatus(models.StatusRunning, nodes, nodes, DefaultOptions()))
		assert.Equal(t, models.StatusRunning, ScopeStatus(models.StatusRunning, nodes, nodes, Options{}))
	})

	t.Run("nothing started keeps previous", func(t *testing.T) {
		a := node("a", models.StatusRunning, models.CategoryCompute)
		b := node("b", models.StatusNotStarted, models.CategoryCompute)
		link(a, b)
		all := index(a, b)

		assert.Equal(t, models.StatusNotStarted, ScopeStatus(models.StatusNotStarted, index(b), all, DefaultOptions()))
	})
}

func foreachGraph() *models.ExecutionGraph {
	loop := node("loop", models.StatusRunning, models.CategoryForeach)
	loop.Definition.KeyCallback = true
	loop.SubGroupStatus = map[string]models.Status{"0": models.StatusRunning, "1": models.StatusRunning, "2": models.StatusRunning}
	loop.SubGroupKeyFlag = map[string]bool{"0": true, "1": true, "2": false}
	loop.Children = make(map[string]*models.TaskNode)

	for group, status := range map[string]models.Status{"0": models.StatusSucceeded, "1": models.StatusSucceeded, "2": models.StatusRunning} {
		child := node(models.BuildName(models.BuildRoute("loop", group), "work"), status, models.CategoryCompute)
		child.Parent = loop.Name
		loop.Children[child.Name] = child
	}

	after := node("after", models.StatusNotStarted, models.CategoryCompute)
	link(loop, after)

	return &models.ExecutionGraph{
		ExecutionID: "exec-1",
		Status:      models.StatusRunning,
		Tasks:       index(loop, after),
	}
}

func TestReconcile_KeyPathForeach(t *testing.T) {
	g := foreachGraph()

	transitions := Reconcile(g, DefaultOptions())

	require.Len(t, transitions, 1)
	assert.Equal(t, Transition{Task: "loop", From: models.StatusRunning, To: models.StatusKeySucceeded}, transitions[0])

	loop := g.Tasks["loop"]
	assert.Equal(t, models.StatusSucceeded, loop.SubGroupStatus["0"])
	assert.Equal(t, models.StatusSucceeded, loop.SubGroupStatus["1"])
	assert.Equal(t, models.StatusRunning, loop.SubGroupStatus["2"])
	assert.Equal(t, models.StatusRunning, g.Status)

	assert.Equal(t, []string{"after"}, names(ReadyToRun(g.Flatten(), DefaultOptions())))
	assert.Empty(t, ReadyToRun(g.Flatten(), Options{KeyPath: false}))
}

func TestReconcile_ForeachCompletes(t *testing.T) {
	g := foreachGraph()
	g.Tasks["loop"].Children["loop~2-work"].Status = models.StatusSucceeded
	g.Tasks["after"].Status = models.StatusSucceeded

	transitions := Reconcile(g, DefaultOptions())

	assert.Equal(t, []Transition{
		{Task: "loop", From: models.StatusRunning, To: models.StatusSucceeded},
		{From: models.StatusRunning, To: models.StatusSucceeded},
	}, transitions)
	assert.Equal(t, models.StatusSucceeded, g.Status)
}

func TestReconcile_Failure(t *testing.T) {
	a := node("a", models.StatusFailed, models.CategoryCompute)
	b := node("b", models.StatusNotStarted, models.CategoryCompute)
	link(a, b)

	g := &models.ExecutionGraph{Status: models.StatusRunning, Tasks: index(a, b)}

	transitions := Reconcile(g, DefaultOptions())

	assert.Equal(t, []Transition{{From: models.StatusRunning, To: models.StatusFailed}}, transitions)
}

func TestReconcile_IgnoresSettledBranches(t *testing.T) {
	g := foreachGraph()
	g.Tasks["loop"].Status = models.StatusSkipped

	Reconcile(g, DefaultOptions())

	assert.Equal(t, models.StatusSkipped, g.Tasks["loop"].Status)
	assert.Equal(t, models.StatusRunning, g.Tasks["loop"].SubGroupStatus["0"])
}

func TestReconcile_Stable(t *testing.T) {
	g := foreachGraph()

	Reconcile(g, DefaultOptions())

	assert.Empty(t, Reconcile(g, DefaultOptions()))
}

func TestOptionsHolder(t *testing.T) {
	var empty OptionsHolder
	assert.Equal(t, DefaultOptions(), empty.Load())

	h := NewOptionsHolder(Options{KeyPath: true, MaxDepth: 5})
	assert.Equal(t, 5, h.Load().MaxDepth)

	updated := h.Update(func(o *Options) { o.IndependentContext = true })
	assert.True(t, updated.IndependentContext)
	assert.True(t, h.Load().KeyPath)
	assert.Equal(t, updated, h.Load())
}
