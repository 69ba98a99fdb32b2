package engine

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// PredicateEvaluator evaluates the boolean expressions of event-match
// triggers. Compiled programs are cached by expression.
type PredicateEvaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

func NewPredicateEvaluator() *PredicateEvaluator {
	return &PredicateEvaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate runs expression against env. The expression must return a bool.
func (p *PredicateEvaluator) Evaluate(expression string, env map[string]any) (bool, error) {
	p.mu.RLock()
	program, ok := p.cache[expression]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		if program, ok = p.cache[expression]; !ok {
			var err error
			program, err = expr.Compile(expression, expr.Env(env), expr.AsBool())
			if err != nil {
				p.mu.Unlock()
				return false, err
			}
			p.cache[expression] = program
		}
		p.mu.Unlock()
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean, got %T", expression, result)
	}
	return matched, nil
}
