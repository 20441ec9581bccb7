// Package modifier holds the optional per-model transforms applied at fixed
// points of an entity's lifecycle: after it is fetched, before it is saved
// and after queued writes are cancelled. A missing hook passes data through.
package modifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/iudanet/gophcache/internal/models"
)

// Name identifies a lifecycle point.
type Name string

// Lifecycle points
const (
	AfterGet   Name = "afterGet"
	BeforeSave Name = "beforeSave"
	AfterQueue Name = "afterQueue"
)

// Func transforms one entity.
type Func func(ctx context.Context, entity models.Entity) (models.Entity, error)

// ListFunc transforms a set of entities.
type ListFunc func(ctx context.Context, entities []models.Entity) ([]models.Entity, error)

// Hooks are the modifiers of one model.
type Hooks struct {
	AfterGet   Func
	BeforeSave Func
	AfterQueue ListFunc
}

// Registry maps model names to their hooks. A nil *Registry is valid and
// applies no modifiers.
type Registry struct {
	hooks map[string]Hooks
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hooks)}
}

// Register sets the hooks of a model, replacing previous ones.
func (r *Registry) Register(model string, hooks Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[model] = hooks
}

// Hooks returns the hooks registered for model.
func (r *Registry) Hooks(model string) (Hooks, bool) {
	if r == nil {
		return Hooks{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hooks[model]
	return h, ok
}

// Apply runs the single-entity modifier name of model on entity.
// The entity is cloned first, so the caller's copy is never modified.
func (r *Registry) Apply(ctx context.Context, name Name, model string, entity models.Entity) (models.Entity, error) {
	if entity == nil {
		return nil, nil
	}
	fn := r.entityFunc(name, model)
	if fn == nil {
		return entity.Clone(), nil
	}

	out, err := fn(ctx, entity.Clone())
	if err != nil {
		return nil, fmt.Errorf("%s modifier of %s: %w", name, model, err)
	}
	return out, nil
}

// ApplyAll runs modifier name of model over entities. Single-entity hooks
// are applied to each element; the afterQueue hook receives the whole set.
func (r *Registry) ApplyAll(ctx context.Context, name Name, model string, entities []models.Entity) ([]models.Entity, error) {
	if name == AfterQueue {
		h, _ := r.Hooks(model)
		clones := make([]models.Entity, 0, len(entities))
		for _, e := range entities {
			clones = append(clones, e.Clone())
		}
		if h.AfterQueue == nil {
			return clones, nil
		}
		out, err := h.AfterQueue(ctx, clones)
		if err != nil {
			return nil, fmt.Errorf("%s modifier of %s: %w", name, model, err)
		}
		return out, nil
	}

	out := make([]models.Entity, 0, len(entities))
	for _, e := range entities {
		modified, err := r.Apply(ctx, name, model, e)
		if err != nil {
			return nil, err
		}
		if modified != nil {
			out = append(out, modified)
		}
	}
	return out, nil
}

func (r *Registry) entityFunc(name Name, model string) Func {
	h, ok := r.Hooks(model)
	if !ok {
		return nil
	}
	switch name {
	case AfterGet:
		return h.AfterGet
	case BeforeSave:
		return h.BeforeSave
	case AfterQueue:
		if h.AfterQueue == nil {
			return nil
		}
		return func(ctx context.Context, e models.Entity) (models.Entity, error) {
			out, err := h.AfterQueue(ctx, []models.Entity{e})
			if err != nil || len(out) == 0 {
				return nil, err
			}
			return out[0], nil
		}
	}
	return nil
}
