package models

import (
	"errors"
	"fmt"
	"strings"
)

// Mutation verbs. Mutation names are derived as <VERB>_<MODEL_NAME_UPPER>.
const (
	VerbAdd           = "ADD"
	VerbDelete        = "DELETE"
	VerbClear         = "CLEAR"
	VerbEdit          = "EDIT"
	VerbQueueAction   = "QUEUE_ACTION"
	VerbUnqueueAction = "UNQUEUE_ACTION"
	VerbResetQueue    = "RESET_QUEUE"
	VerbSettleQueue   = "SETTLE_QUEUE"
	VerbRestore       = "RESTORE"
)

// ErrInvalidModel indicates that a model descriptor cannot be registered
var ErrInvalidModel = errors.New("invalid model")

// Model описывает один тип сущностей: имя, ключ слайса во множественном числе,
// ссылки на другие модели и опциональное преобразование снимка origin.
type Model struct {
	// BeforeQueue transforms the origin snapshot before it is stored,
	// e.g. to strip derived fields. Must be synchronous and side-effect free.
	BeforeQueue func(Entity) Entity

	// References maps an own property name to the name of the model whose
	// instances populate that property.
	References map[string]string

	Name    string   // Name singular key, used in payload Type and mutation names
	Plural  string   // Plural slice key
	Initial []Entity // Initial entities of a fresh (or cleared) slice
}

// MutationName returns the mutation name for verb, e.g. ADD_WIDGET.
func (m *Model) MutationName(verb string) string {
	return verb + "_" + strings.ToUpper(m.Name)
}

// GetterName returns the getter key of the model's slice.
func (m *Model) GetterName() string {
	return strings.ToLower(m.Plural)
}

// Registry holds the model descriptors. It is immutable once built.
type Registry struct {
	models map[string]*Model
	order  []string
}

// NewRegistry validates the descriptors and builds a registry.
// A missing plural defaults to name + "s".
func NewRegistry(models ...*Model) (*Registry, error) {
	r := &Registry{
		models: make(map[string]*Model, len(models)),
		order:  make([]string, 0, len(models)),
	}
	plurals := make(map[string]string, len(models))

	for _, m := range models {
		if m == nil || strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidModel)
		}
		if _, exists := r.models[m.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate model %q", ErrInvalidModel, m.Name)
		}

		model := *m
		if model.Plural == "" {
			model.Plural = model.Name + "s"
		}
		if other, exists := plurals[model.GetterName()]; exists {
			return nil, fmt.Errorf("%w: models %q and %q share plural %q", ErrInvalidModel, other, model.Name, model.Plural)
		}
		plurals[model.GetterName()] = model.Name

		refs := make(map[string]string, len(model.References))
		for prop, target := range model.References {
			refs[prop] = target
		}
		model.References = refs

		r.models[model.Name] = &model
		r.order = append(r.order, model.Name)
	}

	return r, nil
}

// Model returns the descriptor registered under name.
func (r *Registry) Model(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Models returns all descriptors in registration order.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}
