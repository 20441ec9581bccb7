// Package engine runs the asynchronous operations against the cache: fetches,
// direct writes, the offline action queue and its flush and cancel paths.
// All network and modifier work happens here; the store only ever receives
// finished, synchronous mutations.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/gophcache/internal/client/api"
	"github.com/iudanet/gophcache/internal/client/modifier"
	"github.com/iudanet/gophcache/internal/client/store"
	"github.com/iudanet/gophcache/internal/models"
)

//go:generate moq -out requester_mock.go . Requester

// Requester sends one HTTP request to the backend. *api.Client implements it.
type Requester interface {
	Do(ctx context.Context, r api.Request) (*api.Response, error)
}

// Payload addresses one operation.
type Payload struct {
	Data   models.Entity   // Data single entity body
	Items  []models.Entity // Items array body; a non-nil Items without ID addresses all entities
	Header http.Header     // Header per-call request overrides
	Query  url.Values
	Type   string // Type model name
	ID     string
	URL    string // URL overrides the default /<plural> endpoint

	All        bool // All addresses the whole collection even without Items
	ForceFetch bool // ForceFetch skips the cache on Get
	Clear      bool // Clear empties the slice before merging
	NoClear    bool // NoClear keeps the slice on a fetch of all entities
}

// IsAll reports whether the payload addresses the whole collection.
func (p Payload) IsAll() bool {
	return p.All || (p.ID == "" && p.Items != nil)
}

func (p Payload) shouldClear() bool {
	return p.Clear || (p.IsAll() && !p.NoClear)
}

// Result is what an operation merged into (or read from) the cache.
type Result struct {
	Entity models.Entity
	Items  []models.Entity
	Cached bool // Cached is set when Get was served without a request
}

// Option configures an Engine.
type Option func(*Engine)

// WithDataPath sets where the payload sits inside the response body,
// e.g. "result.items". The path is relative to the envelope's data field.
func WithDataPath(path string) Option {
	return func(e *Engine) {
		path = strings.Trim(path, ".")
		if path != "" {
			e.dataPath = api.DefaultDataPath + "." + path
		}
	}
}

// WithModifiers sets the per-model modifier hooks.
func WithModifiers(r *modifier.Registry) Option {
	return func(e *Engine) {
		e.modifiers = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables operation metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithIDGenerator replaces the generator of optimistic ids for queued posts.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// Engine executes operations for the models of one store.
type Engine struct {
	requester Requester
	store     *store.Store
	modifiers *modifier.Registry
	metrics   *Metrics
	logger    *slog.Logger
	newID     func() string
	mutators  map[string]*store.Mutator
	dataPath  string
}

// New creates an engine. Every model of the store's registry is resolved to
// its mutator up front.
func New(requester Requester, s *store.Store, opts ...Option) (*Engine, error) {
	if requester == nil {
		return nil, fmt.Errorf("requester is required")
	}
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}

	e := &Engine{
		requester: requester,
		store:     s,
		logger:    slog.Default(),
		newID:     uuid.NewString,
		mutators:  make(map[string]*store.Mutator),
		dataPath:  api.DefaultDataPath,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, model := range s.Registry().Models() {
		m, err := s.Mutator(model.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mutator: %w", err)
		}
		e.mutators[model.Name] = m
	}

	return e, nil
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) mutator(name string) (*store.Mutator, error) {
	m, ok := e.mutators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// endpoint builds the request URL: p.URL or /<plural>, plus /<id> when one
// entity is addressed.
func endpoint(model *models.Model, p Payload, withID bool) string {
	base := p.URL
	if base == "" {
		base = "/" + model.Plural
	}
	base = strings.TrimRight(base, "/")
	if withID && p.ID != "" {
		base += "/" + url.PathEscape(p.ID)
	}
	return base
}

func (e *Engine) request(ctx context.Context, op string, model string, r api.Request) (any, error) {
	resp, err := e.requester.Do(ctx, r)
	e.metrics.Request(model, op, err)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.URL, err)
	}

	data, ok := api.Lookup(resp.Envelope(), e.dataPath)
	if !ok {
		e.logger.Debug("Response has no data at path", "model", model, "path", e.dataPath)
		return nil, nil
	}
	return data, nil
}

// prepare applies the afterGet hook of model and, through the model's
// references, the hooks of nested entities.
func (e *Engine) prepare(ctx context.Context, model *models.Model, entity models.Entity) (models.Entity, error) {
	out, err := e.modifiers.Apply(ctx, modifier.AfterGet, model.Name, entity)
	if err != nil || out == nil {
		return out, err
	}

	for prop, refName := range model.References {
		ref, ok := e.store.Registry().Model(refName)
		if !ok {
			continue
		}
		raw, ok := out[prop]
		if !ok || raw == nil {
			continue
		}
		if nested, ok := models.AsEntity(raw); ok {
			prepared, err := e.prepare(ctx, ref, nested)
			if err != nil {
				return nil, err
			}
			out[prop] = prepared
			continue
		}
		if list, ok := models.AsList(raw); ok {
			prepared := make([]models.Entity, 0, len(list))
			for _, nested := range list {
				p, err := e.prepare(ctx, ref, nested)
				if err != nil {
					return nil, err
				}
				if p != nil {
					prepared = append(prepared, p)
				}
			}
			out[prop] = prepared
		}
	}
	return out, nil
}

// addToStore runs afterGet over data and merges the result with ADD.
func (e *Engine) addToStore(ctx context.Context, m *store.Mutator, data any) (*Result, error) {
	model := m.Model()

	if entity, ok := models.AsEntity(data); ok {
		prepared, err := e.prepare(ctx, model, entity)
		if err != nil {
			return nil, err
		}
		if prepared == nil {
			return &Result{}, nil
		}
		m.Add(prepared)
		return &Result{Entity: prepared.Clone()}, nil
	}

	if list, ok := models.AsList(data); ok {
		prepared := make([]models.Entity, 0, len(list))
		for _, entity := range list {
			p, err := e.prepare(ctx, model, entity)
			if err != nil {
				return nil, err
			}
			if p != nil {
				prepared = append(prepared, p)
			}
		}
		m.Add(prepared...)

		out := make([]models.Entity, 0, len(prepared))
		for _, p := range prepared {
			out = append(out, p.Clone())
		}
		return &Result{Items: out}, nil
	}

	if data != nil {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedData, data)
	}
	return &Result{}, nil
}

func (e *Engine) beforeSave(ctx context.Context, model string, p Payload) (any, error) {
	switch {
	case p.Data != nil:
		out, err := e.modifiers.Apply(ctx, modifier.BeforeSave, model, p.Data)
		if err != nil || out == nil {
			return nil, err
		}
		return out, nil
	case p.Items != nil:
		return e.modifiers.ApplyAll(ctx, modifier.BeforeSave, model, p.Items)
	}
	return nil, nil
}

// requestBody returns the payload body without modifiers, nil when there is none.
func requestBody(p Payload) any {
	switch {
	case p.Data != nil:
		return p.Data
	case p.Items != nil:
		return p.Items
	}
	return nil
}
