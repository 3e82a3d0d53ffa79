// Package models defines the task graph data model shared by the builder, the readiness and
// status engine, the context partitioner and the persistence tiers.
package models

import "fmt"

// Category is the closed set of task kinds a definition can declare.
type Category string

const (
	CategoryCompute  Category = "compute"  // Dispatched to an external executor
	CategoryChoice   Category = "choice"   // Expands every branch whose condition holds
	CategoryForeach  Category = "foreach"  // Expands one sub-group per iteration item
	CategorySwitch   Category = "switch"   // Expands the first branch whose condition holds
	CategoryPass     Category = "pass"     // Copies its output mapping inline
	CategorySuspense Category = "suspense" // Waits for an external wake-up
	CategoryReturn   Category = "return"   // Ends its scope when its conditions hold
	CategoryAnswer   Category = "answer"   // Dispatched to the answer sink
)

// Categories lists every known category.
var Categories = []Category{
	CategoryCompute,
	CategoryChoice,
	CategoryForeach,
	CategorySwitch,
	CategoryPass,
	CategorySuspense,
	CategoryReturn,
	CategoryAnswer,
}

// Validate reports an error for a tag outside the closed category set.
func (c Category) Validate() error {
	switch c {
	case CategoryCompute, CategoryChoice, CategoryForeach, CategorySwitch,
		CategoryPass, CategorySuspense, CategoryReturn, CategoryAnswer:
		return nil
	default:
		return fmt.Errorf("unknown task category %q", string(c))
	}
}

// IsBranch reports whether the category owns nested sub-groups.
func (c Category) IsBranch() bool {
	switch c {
	case CategoryChoice, CategoryForeach, CategorySwitch:
		return true
	case CategoryCompute, CategoryPass, CategorySuspense, CategoryReturn, CategoryAnswer:
		return false
	default:
		return false
	}
}

// IsFork reports whether the category hides its output from stream consumers until it resolves.
func (c Category) IsFork() bool {
	switch c {
	case CategoryChoice, CategoryForeach, CategorySwitch, CategoryReturn:
		return true
	case CategoryCompute, CategoryPass, CategorySuspense, CategoryAnswer:
		return false
	default:
		return false
	}
}

// IsDispatched reports whether tasks of this category are handed to the dispatch layer.
func (c Category) IsDispatched() bool {
	switch c {
	case CategoryCompute, CategoryAnswer:
		return true
	case CategoryChoice, CategoryForeach, CategorySwitch, CategoryPass, CategorySuspense, CategoryReturn:
		return false
	default:
		return false
	}
}

// IOType describes how a task consumes its input or produces its output.
type IOType string

const (
	IOTypeBlock  IOType = "block"
	IOTypeStream IOType = "stream"
)

// TaskDefinition is the immutable, declarative description of one task.
type TaskDefinition struct {
	Name          string            `json:"name"                     yaml:"name"                     validate:"required"`
	Category      Category          `json:"category"                 yaml:"category"                 validate:"required"`
	Next          []string          `json:"next,omitempty"           yaml:"next,omitempty"`
	Tolerance     bool              `json:"tolerance,omitempty"      yaml:"tolerance,omitempty"`
	KeyCallback   bool              `json:"key_callback,omitempty"   yaml:"key_callback,omitempty"`
	KeyExpression string            `json:"key_expression,omitempty" yaml:"key_expression,omitempty"`
	InputType     IOType            `json:"input_type,omitempty"     yaml:"input_type,omitempty"     validate:"omitempty,oneof=block stream"`
	OutputType    IOType            `json:"output_type,omitempty"    yaml:"output_type,omitempty"    validate:"omitempty,oneof=block stream"`
	Resource      string            `json:"resource,omitempty"       yaml:"resource,omitempty"`
	Input         map[string]string `json:"input,omitempty"          yaml:"input,omitempty"`
	Output        map[string]string `json:"output,omitempty"         yaml:"output,omitempty"`
	Conditions    []string          `json:"conditions,omitempty"     yaml:"conditions,omitempty"`
	Choices       []*ChoiceBranch   `json:"choices,omitempty"        yaml:"choices,omitempty"        validate:"omitempty,dive"`
	Foreach       *ForeachBody      `json:"foreach,omitempty"        yaml:"foreach,omitempty"`
}

// ChoiceBranch is one arm of a choice or switch task.
type ChoiceBranch struct {
	Condition string            `json:"condition,omitempty" yaml:"condition,omitempty"`
	Tasks     []*TaskDefinition `json:"tasks"               yaml:"tasks"               validate:"dive"`
	Key       bool              `json:"key,omitempty"       yaml:"key,omitempty"`
}

// ForeachBody is the iterated body of a foreach task. Source names the context key holding
// the list to iterate over. The owning task's KeyExpression, evaluated against each
// iteration's context, decides which iterations are key groups.
type ForeachBody struct {
	Source string            `json:"source" yaml:"source" validate:"required"`
	Tasks  []*TaskDefinition `json:"tasks"  yaml:"tasks"  validate:"dive"`
}

// GraphDefinition is a parsed, validated task graph document.
type GraphDefinition struct {
	Name        string            `json:"name"                  yaml:"name"                  validate:"required"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []*TaskDefinition `json:"tasks"                 yaml:"tasks"                 validate:"required,min=1,dive"`
}

// IsStreamInput reports whether the task may consume its input while its producer still runs.
func (d *TaskDefinition) IsStreamInput() bool {
	return d != nil && d.InputType == IOTypeStream
}

// SubGroups returns the task lists of every declared branch keyed by group index. Foreach
// bodies are expanded per item at run time and are not part of the result.
func (d *TaskDefinition) SubGroups() map[string][]*TaskDefinition {
	groups := make(map[string][]*TaskDefinition)

	switch d.Category {
	case CategoryChoice, CategorySwitch:
		for i, branch := range d.Choices {
			groups[fmt.Sprint(i)] = branch.Tasks
		}
	case CategoryForeach, CategoryCompute, CategoryPass, CategorySuspense, CategoryReturn, CategoryAnswer:
	}

	return groups
}

// Body returns the definitions a sub-group of this task is built from.
func (d *TaskDefinition) Body(groupIndex string) []*TaskDefinition {
	switch d.Category {
	case CategoryForeach:
		if d.Foreach == nil {
			return nil
		}

		return d.Foreach.Tasks
	case CategoryChoice, CategorySwitch:
		return d.SubGroups()[groupIndex]
	case CategoryCompute, CategoryPass, CategorySuspense, CategoryReturn, CategoryAnswer:
		return nil
	default:
		return nil
	}
}
