// Package expression evaluates user-authored expressions for the transform and
// condition handlers. Expressions are compiled by expr-lang into a sandboxed
// program with no access to I/O or the host environment; the execution context
// values are bound as top-level variables.
package expression

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var ErrEmptyExpression = errors.New("expression is required")

// Engine compiles and runs expressions. Compiled programs are cached and
// reused across runs; the cache is safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewEngine() *Engine {
	return &Engine{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate runs an expression against the given context values. Every context
// key is available as a variable; undefined variables resolve to nil instead
// of failing compilation, matching the resolver's lenient lookup.
func (e *Engine) Evaluate(expression string, context map[string]any) (any, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}

	program, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	env := buildEnv(context)

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation failed: %w", err)
	}

	return out, nil
}

// EvaluateBool runs an expression and coerces the result to a boolean using
// truthiness rules: nil, false, zero numbers and empty strings are false,
// everything else is true.
func (e *Engine) EvaluateBool(expression string, context map[string]any) (bool, error) {
	out, err := e.Evaluate(expression, context)
	if err != nil {
		return false, err
	}

	return Truthy(out), nil
}

func (e *Engine) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()

		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	e.cache[expression] = program

	return program, nil
}

// buildEnv merges the context values with a fixed allow-list of pure helpers.
// expr's own builtins already cover math, string and collection operations.
func buildEnv(context map[string]any) map[string]any {
	env := make(map[string]any, len(context)+3)
	for key, value := range context {
		env[key] = value
	}

	env["jsonParse"] = func(input string) any {
		var parsed any
		if err := json.Unmarshal([]byte(input), &parsed); err != nil {
			return nil
		}

		return parsed
	}
	env["jsonStringify"] = func(value any) string {
		encoded, err := json.Marshal(value)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
	env["now"] = func() string {
		return time.Now().UTC().Format(time.RFC3339)
	}

	return env
}

// Truthy applies JSON-style truthiness to an evaluation result.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	default:
		return true
	}
}
