package modifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/iudanet/gophcache/internal/models"
)

// ErrScriptResult indicates that a script returned something other than the expected shape
var ErrScriptResult = errors.New("unexpected script result")

// script is a compiled JavaScript function expression. Each call runs on a
// fresh runtime, so a script may be used from several goroutines.
type script struct {
	program *goja.Program
	source  string
}

func compile(source string) (*script, error) {
	if source == "" {
		return nil, fmt.Errorf("script must not be empty")
	}
	program, err := goja.Compile("modifier", fmt.Sprintf("(%s)", source), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	return &script{program: program, source: source}, nil
}

// call evaluates the function expression and invokes it with arg.
// Cancelling ctx interrupts the running script.
func (s *script) call(ctx context.Context, arg any) (any, error) {
	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	value, err := vm.RunProgram(s.program)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("%w: script is not a function", ErrScriptResult)
	}

	result, err := fn(goja.Undefined(), vm.ToValue(arg))
	if err != nil {
		return nil, fmt.Errorf("script failed: %w", err)
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// Script compiles a JavaScript function expression taking and returning one
// entity, e.g. `function (e) { e.label = e.name.toUpperCase(); return e }`.
// Returning undefined keeps the input unchanged.
func Script(source string) (Func, error) {
	s, err := compile(source)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, entity models.Entity) (models.Entity, error) {
		arg := map[string]any(entity.Clone())
		out, err := s.call(ctx, arg)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return models.Entity(arg), nil
		}
		e, ok := models.AsEntity(out)
		if !ok {
			return nil, fmt.Errorf("%w: expected object, got %T", ErrScriptResult, out)
		}
		return e, nil
	}, nil
}

// ListScript compiles a JavaScript function expression taking and returning
// an array of entities.
func ListScript(source string) (ListFunc, error) {
	s, err := compile(source)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, entities []models.Entity) ([]models.Entity, error) {
		arg := make([]any, 0, len(entities))
		for _, e := range entities {
			arg = append(arg, map[string]any(e.Clone()))
		}
		out, err := s.call(ctx, arg)
		if err != nil {
			return nil, err
		}
		if out == nil {
			list, _ := models.AsList(arg)
			return list, nil
		}
		list, ok := models.AsList(out)
		if !ok {
			return nil, fmt.Errorf("%w: expected array of objects, got %T", ErrScriptResult, out)
		}
		return list, nil
	}, nil
}
