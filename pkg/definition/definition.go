// Package definition loads graph definition documents written in YAML or JSON and rejects the
// ones that cannot be built into an execution graph.
package definition

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaDocument []byte

// ErrEmptyDocument is returned for a document without content.
var ErrEmptyDocument = errors.New("definition document is empty")

// Loader parses and validates graph definitions.
type Loader struct {
	logger    *slog.Logger
	schema    *gojsonschema.Schema
	validator *validator.Validate
}

// NewLoader compiles the embedded document schema.
func NewLoader(logger *slog.Logger) (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaDocument))
	if err != nil {
		return nil, fmt.Errorf("failed to compile definition schema: %w", err)
	}

	return &Loader{
		logger:    logger.With("module", "definition_loader"),
		schema:    schema,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// LoadFile reads and parses the definition stored at path.
func (l *Loader) LoadFile(path string) (*models.GraphDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}

	def, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", path, err)
	}

	l.logger.Info("Loaded graph definition", "path", path, "name", def.Name, "tasks", len(def.Tasks))

	return def, nil
}

// LoadReader reads and parses a definition from r.
func (l *Loader) LoadReader(r io.Reader) (*models.GraphDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	return l.Parse(data)
}

// Parse decodes a YAML or JSON document and validates it. Every validation failure wraps
// graph.ErrMalformedGraph.
func (l *Loader) Parse(data []byte) (*models.GraphDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}

	// JSON documents are valid YAML, so one decoder serves both formats.
	var document any

	err := yaml.Unmarshal(data, &document)
	if err != nil {
		return nil, malformed("Parse", "", fmt.Errorf("failed to decode document: %w", err))
	}

	err = l.validateSchema(document)
	if err != nil {
		return nil, malformed("Parse", "", err)
	}

	var def models.GraphDefinition

	err = yaml.Unmarshal(data, &def)
	if err != nil {
		return nil, malformed("Parse", "", fmt.Errorf("failed to decode definition: %w", err))
	}

	err = l.Validate(&def)
	if err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate runs the struct and graph checks on an already decoded definition.
func (l *Loader) Validate(def *models.GraphDefinition) error {
	if def == nil {
		return malformed("Validate", "", errors.New("nil definition"))
	}

	err := l.validator.Struct(def)
	if err != nil {
		return malformed("Validate", def.Name, err)
	}

	issues := checkScope("", def.Tasks)
	if len(issues) > 0 {
		return malformed("Validate", def.Name, errors.New(strings.Join(issues, "; ")))
	}

	return nil
}

func (l *Loader) validateSchema(document any) error {
	result, err := l.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("failed to validate document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		messages = append(messages, issue.String())
	}

	return fmt.Errorf("schema validation failed: %s", strings.Join(messages, "; "))
}

func malformed(op, name string, err error) error {
	return &graph.Error{Op: op, Task: name, Err: fmt.Errorf("%w: %w", graph.ErrMalformedGraph, err)}
}

// checkScope validates one list of sibling definitions and recurses into branch bodies.
// scope is the path used in messages.
func checkScope(scope string, defs []*models.TaskDefinition) []string {
	var issues []string

	seen := make(map[string]struct{}, len(defs))

	for _, def := range defs {
		if def == nil {
			issues = append(issues, fmt.Sprintf("%s: empty task entry", where(scope)))

			continue
		}

		if strings.Contains(def.Name, models.RouteSeparator) {
			issues = append(issues, fmt.Sprintf("%s: task name %q contains %q", where(scope), def.Name, models.RouteSeparator))
		}

		if _, dup := seen[def.Name]; dup {
			issues = append(issues, fmt.Sprintf("%s: duplicate task name %q", where(scope), def.Name))
		}

		seen[def.Name] = struct{}{}

		issues = append(issues, checkTask(scope, def)...)
	}

	for _, def := range defs {
		if def == nil {
			continue
		}

		for _, next := range def.Next {
			if _, ok := seen[next]; !ok {
				issues = append(issues, fmt.Sprintf("%s: task %q has next %q outside its scope", where(scope), def.Name, next))
			}
		}
	}

	if cycle := findCycle(defs); cycle != "" {
		issues = append(issues, fmt.Sprintf("%s: next edges form a cycle through %q", where(scope), cycle))
	}

	return issues
}

func checkTask(scope string, def *models.TaskDefinition) []string {
	var issues []string

	path := def.Name
	if scope != "" {
		path = scope + "/" + def.Name
	}

	err := def.Category.Validate()
	if err != nil {
		return append(issues, fmt.Sprintf("%s: %v", path, err))
	}

	switch def.Category {
	case models.CategoryChoice, models.CategorySwitch:
		if def.Foreach != nil {
			issues = append(issues, fmt.Sprintf("%s: %s task cannot declare a foreach body", path, def.Category))
		}

		for i, choice := range def.Choices {
			issues = append(issues, checkScope(fmt.Sprintf("%s[%d]", path, i), choice.Tasks)...)
		}
	case models.CategoryForeach:
		if def.Foreach == nil {
			issues = append(issues, fmt.Sprintf("%s: foreach task without a foreach body", path))

			break
		}

		if len(def.Choices) > 0 {
			issues = append(issues, fmt.Sprintf("%s: foreach task cannot declare choices", path))
		}

		issues = append(issues, checkScope(path+"[]", def.Foreach.Tasks)...)
	case models.CategoryCompute, models.CategoryAnswer, models.CategoryPass, models.CategorySuspense, models.CategoryReturn:
		issues = append(issues, checkLeaf(path, def)...)
	}

	return issues
}

func checkLeaf(path string, def *models.TaskDefinition) []string {
	if len(def.Choices) > 0 || def.Foreach != nil {
		return []string{fmt.Sprintf("%s: %s task cannot own sub-groups", path, def.Category)}
	}

	return nil
}

// findCycle returns a task that sits on a next cycle, or "" when the scope is acyclic.
func findCycle(defs []*models.TaskDefinition) string {
	inDegree := make(map[string]int, len(defs))
	edges := make(map[string][]string, len(defs))

	for _, def := range defs {
		if def == nil {
			continue
		}

		inDegree[def.Name] += 0
	}

	for _, def := range defs {
		if def == nil {
			continue
		}

		for _, next := range def.Next {
			if _, ok := inDegree[next]; !ok {
				continue
			}

			edges[def.Name] = append(edges[def.Name], next)
			inDegree[next]++
		}
	}

	queue := make([]string, 0, len(inDegree))
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		for _, next := range edges[name] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	remaining := make([]string, 0)
	for name, degree := range inDegree {
		if degree > 0 {
			remaining = append(remaining, name)
		}
	}

	if len(remaining) == 0 {
		return ""
	}

	sort.Strings(remaining)

	return remaining[0]
}

func where(scope string) string {
	if scope == "" {
		return "tasks"
	}

	return scope
}
