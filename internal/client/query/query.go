// Package query filters cached entities with expr-lang predicates, e.g.
// `price > 10 && name startsWith "g"`. Entity properties are top-level
// variables; the whole entity is also available as `item`.
package query

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/iudanet/gophcache/internal/models"
)

// Filter is a compiled predicate.
type Filter struct {
	program    *exprvm.Program
	expression string
}

// Compile compiles a boolean expression. Unknown properties evaluate to nil.
func Compile(expression string) (*Filter, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %q: %w", expression, err)
	}
	return &Filter{program: program, expression: expression}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expression
}

// Match evaluates the predicate against one entity.
func (f *Filter) Match(entity models.Entity) (bool, error) {
	env := make(map[string]any, len(entity)+1)
	for k, v := range entity {
		env[k] = v
	}
	env["item"] = map[string]any(entity)

	out, err := exprlang.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate %q on %s: %w", f.expression, entity.ID(), err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Select returns the matching entities of an id-keyed set in id order.
// A nil filter matches everything.
func (f *Filter) Select(items map[string]models.Entity) ([]models.Entity, error) {
	out := make([]models.Entity, 0, len(items))
	for _, id := range models.SortedIDs(items) {
		e := items[id]
		if f != nil {
			ok, err := f.Match(e)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}
