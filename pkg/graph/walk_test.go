package graph

import (
	"testing"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain nests depth levels of foreach tasks below a top-level task named "l0" and marks the
// innermost leaf failed.
func chain(depth int) *models.ExecutionGraph {
	root := &models.TaskNode{Name: "l0", Status: models.StatusRunning, Definition: &models.TaskDefinition{Name: "l0", Category: models.CategoryForeach, Resource: "svc-a"}}
	current := root

	for i := 1; i <= depth; i++ {
		route := models.BuildRoute(current.Name, "0")
		child := &models.TaskNode{
			Name:       models.BuildName(route, "l"),
			RouteName:  route,
			Parent:     current.Name,
			Status:     models.StatusRunning,
			Definition: &models.TaskDefinition{Name: "l", Category: models.CategoryForeach},
		}
		if i == depth {
			child.Status = models.StatusFailed
			child.Definition = &models.TaskDefinition{Name: "l", Category: models.CategoryCompute, Resource: "svc-b"}
		}

		current.Children = map[string]*models.TaskNode{child.Name: child}
		current = child
	}

	return &models.ExecutionGraph{
		ExecutionID: "exec-1",
		Tasks: map[string]*models.TaskNode{
			root.Name: root,
			"other":   {Name: "other", Status: models.StatusFailed, Definition: &models.TaskDefinition{Name: "other", Category: models.CategoryCompute, Resource: "svc-a"}},
		},
	}
}

func TestWalk_Depths(t *testing.T) {
	g := chain(2)
	depths := make(map[string]int)

	result := Walk(g.Tasks, 5, func(task *models.TaskNode, depth int) bool {
		depths[task.Name] = depth

		return true
	})

	assert.False(t, result.Truncated)
	assert.Equal(t, 0, depths["l0"])
	assert.Equal(t, 0, depths["other"])
	assert.Equal(t, 1, depths["l0~0-l"])
	assert.Equal(t, 2, depths["l0~0-l~0-l"])
}

func TestWalk_Truncates(t *testing.T) {
	g := chain(5)
	visited := 0

	result := Walk(g.Tasks, 2, func(_ *models.TaskNode, depth int) bool {
		assert.LessOrEqual(t, depth, 2)
		visited++

		return true
	})

	assert.True(t, result.Truncated)
	assert.Equal(t, 2, result.MaxDepth)
	assert.Equal(t, 4, visited)
}

func TestWalk_NegativeDepthUsesDefault(t *testing.T) {
	result := Walk(chain(1).Tasks, -1, func(*models.TaskNode, int) bool { return true })

	assert.Equal(t, DefaultMaxDepth, result.MaxDepth)
}

func TestWalk_StopsEarly(t *testing.T) {
	visited := 0

	Walk(chain(3).Tasks, 5, func(*models.TaskNode, int) bool {
		visited++

		return false
	})

	assert.Equal(t, 1, visited)
}

func TestFailedTasks(t *testing.T) {
	failed, result := FailedTasks(chain(2), DefaultMaxDepth)
	assert.False(t, result.Truncated)
	assert.Len(t, failed, 2)

	failed, result = FailedTasks(chain(6), DefaultMaxDepth)
	assert.True(t, result.Truncated)
	require.Len(t, failed, 1)
	assert.Equal(t, "other", failed[0].Name)
}

func TestFindTask(t *testing.T) {
	found, _ := FindTask(chain(2), "l0~0-l~0-l", DefaultMaxDepth)
	require.NotNil(t, found)
	assert.Equal(t, models.StatusFailed, found.Status)

	found, result := FindTask(chain(5), "l0~0-l~0-l~0-l~0-l", 2)
	assert.Nil(t, found)
	assert.True(t, result.Truncated)
}

func TestResources(t *testing.T) {
	resources, _ := Resources(chain(2), DefaultMaxDepth)

	assert.Equal(t, []string{"svc-a", "svc-b"}, resources)
}

func TestBuilder_Preview(t *testing.T) {
	b := newTestBuilder()
	def := &models.GraphDefinition{
		Name: "preview",
		Tasks: []*models.TaskDefinition{
			{
				Name:     "loop",
				Category: models.CategoryForeach,
				Foreach: &models.ForeachBody{Source: "items", Tasks: []*models.TaskDefinition{
					{
						Name:     "pick",
						Category: models.CategoryChoice,
						Choices: []*models.ChoiceBranch{
							{Condition: "true", Tasks: []*models.TaskDefinition{compute("left")}},
							{Condition: "false", Tasks: []*models.TaskDefinition{compute("right")}},
						},
					},
				}},
			},
		},
	}

	tasks, result, err := b.Preview(def, DefaultMaxDepth)
	require.NoError(t, err)
	assert.False(t, result.Truncated)

	g := &models.ExecutionGraph{Tasks: tasks}
	_, ok := g.Lookup("loop~0-pick~1-right")
	assert.True(t, ok)

	for _, task := range g.Flatten() {
		assert.Equal(t, models.StatusNotStarted, task.Status)
	}

	tasks, result, err = b.Preview(def, 1)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Empty(t, tasks["loop"].Children["loop~0-pick"].Children)
}
