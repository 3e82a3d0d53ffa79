// Package conditional evaluates the simple branch conditions and context references used by
// choice, switch, return and foreach tasks.
package conditional

import (
	"fmt"
	"strconv"
	"strings"
)

// ReferencePrefix marks an operand that is read from the context.
const ReferencePrefix = "$."

// Evaluator decides whether a condition holds against a context.
type Evaluator interface {
	Evaluate(expression string, data map[string]any) (bool, error)
}

// SimpleEvaluator understands literals, $.path references and the == and != operators.
type SimpleEvaluator struct{}

func (s SimpleEvaluator) Evaluate(expression string, data map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return true, nil
	}

	for _, op := range []string{"!=", "=="} {
		left, right, found := strings.Cut(expression, op)
		if !found {
			continue
		}

		l := fmt.Sprint(operand(strings.TrimSpace(left), data))
		r := fmt.Sprint(operand(strings.TrimSpace(right), data))

		if op == "==" {
			return l == r, nil
		}

		return l != r, nil
	}

	return Truthy(operand(expression, data))
}

// Truthy converts a value to a boolean the way conditions read it.
func Truthy(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return false, nil
		}

		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []any:
		return len(v) > 0, nil
	case map[string]any:
		return len(v) > 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}

// Resolve reads a dotted path such as "$.user.id" from data. The prefix is optional.
func Resolve(path string, data map[string]any) (any, bool) {
	path = strings.TrimPrefix(strings.TrimSpace(path), ReferencePrefix)
	if path == "" {
		return data, true
	}

	var current any = data

	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[part]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}

			current = node[i]
		default:
			return nil, false
		}
	}

	return current, true
}

// Map applies a target-to-source mapping: every target key receives the value its source
// reference resolves to in data. Sources without the reference prefix are literals.
func Map(mapping map[string]string, data map[string]any) map[string]any {
	result := make(map[string]any, len(mapping))

	for target, source := range mapping {
		result[target] = operand(source, data)
	}

	return result
}

func operand(raw string, data map[string]any) any {
	if strings.HasPrefix(raw, ReferencePrefix) {
		value, _ := Resolve(raw, data)

		return value
	}

	if unquoted, err := strconv.Unquote(raw); err == nil {
		return unquoted
	}

	return raw
}
