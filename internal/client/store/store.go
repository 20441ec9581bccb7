// Package store keeps the normalized in-memory entity cache: one slice per
// model plus the mutations that are the only way to change a slice.
//
// Every mutation runs as a single synchronous critical section. It never
// performs I/O and never calls modifier hooks; callers resolve all
// asynchronous work before committing.
package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/gophcache/internal/models"
)

// Mutation describes a committed state change. Observers receive it after the
// change is fully applied.
type Mutation struct {
	Payload any
	Name    string // Name is <VERB>_<MODEL_NAME_UPPER>
	Model   string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for non-fatal mutation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for LastLoad.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds every model slice.
type Store struct {
	registry *models.Registry
	logger   *slog.Logger
	now      func() time.Time

	slices   map[string]*Slice
	mutators map[string]*Mutator
	handlers map[string]handler
	getters  map[string]string

	subscribers map[int]func(Mutation)
	mu          sync.RWMutex
	subMu       sync.Mutex
	nextSub     int
	seq         uint64
}

type handler func(payload any) error

// New builds a store with one slice and one set of mutations per model.
func New(registry *models.Registry, opts ...Option) *Store {
	s := &Store{
		registry:    registry,
		logger:      slog.Default(),
		now:         time.Now,
		slices:      make(map[string]*Slice),
		mutators:    make(map[string]*Mutator),
		handlers:    make(map[string]handler),
		getters:     make(map[string]string),
		subscribers: make(map[int]func(Mutation)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, model := range registry.Models() {
		s.slices[model.Name] = newSlice(model)
		m := &Mutator{store: s, model: model}
		s.mutators[model.Name] = m
		s.getters[model.GetterName()] = model.Name
		s.registerHandlers(m)
	}

	return s
}

// Registry returns the model registry the store was built from.
func (s *Store) Registry() *models.Registry {
	return s.registry
}

// Mutator returns the mutations bound to the named model.
func (s *Store) Mutator(model string) (*Mutator, error) {
	m, ok := s.mutators[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return m, nil
}

// Commit dispatches a mutation by its name, e.g. ADD_WIDGET.
func (s *Store) Commit(name string, payload any) error {
	h, ok := s.handlers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMutation, name)
	}
	return h(payload)
}

// Subscribe registers an observer invoked after every committed mutation.
// The returned function removes the observer.
func (s *Store) Subscribe(fn func(Mutation)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// Get returns a copy of the slice registered under the lowercase plural.
func (s *Store) Get(plural string) (Slice, bool) {
	name, ok := s.getters[plural]
	if !ok {
		return Slice{}, false
	}
	return s.mutators[name].Slice(), true
}

// Reset clears every slice back to its initial shape.
func (s *Store) Reset() {
	for _, model := range s.registry.Models() {
		s.mutators[model.Name].Clear()
	}
}

// Resolve returns a copy of the entity with reference ids expanded from the
// referenced slices.
func (s *Store) Resolve(model, id string) (models.Entity, bool) {
	m, ok := s.registry.Model(model)
	if !ok {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resolve(m, id, map[string]bool{})
}

func (s *Store) resolve(model *models.Model, id string, visiting map[string]bool) (models.Entity, bool) {
	live, ok := s.slices[model.Name].Items[id]
	if !ok {
		return nil, false
	}
	key := model.Name + "/" + id
	out := live.Clone()
	if visiting[key] {
		return out, true
	}
	visiting[key] = true
	defer delete(visiting, key)

	for prop, refName := range model.References {
		ref, ok := s.registry.Model(refName)
		if !ok {
			continue
		}
		switch v := out[prop].(type) {
		case string:
			if e, ok := s.resolve(ref, v, visiting); ok {
				out[prop] = e
			}
		case []string:
			list := make([]any, 0, len(v))
			for _, refID := range v {
				if e, ok := s.resolve(ref, refID, visiting); ok {
					list = append(list, e)
				} else {
					list = append(list, refID)
				}
			}
			out[prop] = list
		}
	}
	return out, true
}

// write applies fn under the write lock and notifies observers afterwards.
// fn returns the name the change is reported under; empty means nothing happened.
func (s *Store) write(model string, fn func() (name string, payload any)) {
	s.mu.Lock()
	name, payload := fn()
	s.mu.Unlock()

	if name == "" {
		return
	}
	s.notify(Mutation{Name: name, Model: model, Payload: payload})
}

func (s *Store) notify(mutation Mutation) {
	s.subMu.Lock()
	observers := make([]func(Mutation), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		observers = append(observers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range observers {
		fn(mutation)
	}
}
