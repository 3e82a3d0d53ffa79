package graph

import (
	"sort"

	"github.com/dukex/flowengine/pkg/models"
)

// previewForeachGroup is the group index used for the single template iteration of a
// foreach body in a preview.
const previewForeachGroup = "0"

// Preview eagerly expands every declared branch body of def, without running anything, up to
// maxDepth levels of nesting. Deeper bodies are left unexpanded and the result is flagged
// Truncated. It serves diagnostic queries only; the scheduler expands groups lazily.
func (b *Builder) Preview(def *models.GraphDefinition, maxDepth int) (map[string]*models.TaskNode, WalkResult, error) {
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}

	result := WalkResult{MaxDepth: maxDepth}

	tasks, err := b.Build(def.Tasks, nil, nil)
	if err != nil {
		return nil, result, err
	}

	type item struct {
		task  *models.TaskNode
		depth int
	}

	worklist := make([]item, 0, len(tasks))
	for _, name := range sortedNames(tasks) {
		worklist = append(worklist, item{task: tasks[name], depth: 0})
	}

	for len(worklist) > 0 {
		current := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		groups := previewGroups(current.task.Definition)
		if len(groups) == 0 {
			continue
		}

		if current.depth+1 > maxDepth {
			result.Truncated = true

			continue
		}

		for _, index := range groups {
			group, err := b.ExpandGroup(current.task, index, current.task.Definition.Body(index), false)
			if err != nil {
				return nil, result, err
			}

			for _, name := range sortedNames(group) {
				worklist = append(worklist, item{task: group[name], depth: current.depth + 1})
			}
		}
	}

	return tasks, result, nil
}

func previewGroups(def *models.TaskDefinition) []string {
	switch def.Category {
	case models.CategoryForeach:
		if def.Foreach == nil {
			return nil
		}

		return []string{previewForeachGroup}
	case models.CategoryChoice, models.CategorySwitch:
		indexes := make([]string, 0, len(def.Choices))
		for index := range def.SubGroups() {
			indexes = append(indexes, index)
		}

		sort.Strings(indexes)

		return indexes
	case models.CategoryCompute, models.CategoryPass, models.CategorySuspense, models.CategoryReturn, models.CategoryAnswer:
		return nil
	default:
		return nil
	}
}
