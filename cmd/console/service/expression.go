package service

import (
	"fmt"
	"sync"

	"github.com/datacove/console/cmd/console/models"
	"github.com/google/cel-go/cel"
)

// exprEvaluator evaluates rule expressions using CEL
// (Common Expression Language) with compiled-program caching.
type exprEvaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// newExprEvaluator creates a new expression evaluator
func newExprEvaluator() *exprEvaluator {
	return &exprEvaluator{
		cache: make(map[string]cel.Program),
	}
}

// EvalRow evaluates a CEL expression against one row. The row is bound
// to the `row` variable; expressions must return a boolean.
func (e *exprEvaluator) EvalRow(expr string, row models.Row) (bool, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()

	if !exists {
		var err error
		prg, err = e.compile(expr)
		if err != nil {
			return false, err
		}

		e.mu.Lock()
		e.cache[expr] = prg
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(map[string]any{
		"row": map[string]any(row),
	})
	if err != nil {
		return false, fmt.Errorf("expression evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return boolean, got %T", out.Value())
	}

	return result, nil
}

// Compile checks that an expression compiles, without evaluating it
func (e *exprEvaluator) Compile(expr string) error {
	_, err := e.compile(expr)
	return err
}

func (e *exprEvaluator) compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("expression compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return prg, nil
}
