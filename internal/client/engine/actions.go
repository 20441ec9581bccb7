package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/iudanet/gophcache/internal/client/api"
	"github.com/iudanet/gophcache/internal/client/modifier"
	"github.com/iudanet/gophcache/internal/client/store"
	"github.com/iudanet/gophcache/internal/models"
)

// Get returns the cached entity, or fetches it when it is absent or
// p.ForceFetch is set. A payload without id always fetches.
func (e *Engine) Get(ctx context.Context, p Payload) (*Result, error) {
	m, err := e.mutator(p.Type)
	if err != nil {
		return nil, err
	}

	if !p.ForceFetch && p.ID != "" {
		if item, ok := m.Item(p.ID); ok {
			e.metrics.CacheHit(p.Type)
			return &Result{Entity: item, Cached: true}, nil
		}
	}
	return e.fetch(ctx, m, p)
}

func (e *Engine) fetch(ctx context.Context, m *store.Mutator, p Payload) (*Result, error) {
	model := m.Model()
	if p.shouldClear() {
		m.Clear()
	}

	data, err := e.request(ctx, "get", model.Name, api.Request{
		Method: http.MethodGet,
		URL:    endpoint(model, p, !p.IsAll()),
		Header: p.Header,
		Query:  p.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", model.Name, err)
	}

	return e.addToStore(ctx, m, data)
}

// Post creates an entity on the backend and merges the response.
func (e *Engine) Post(ctx context.Context, p Payload) (*Result, error) {
	return e.save(ctx, p, http.MethodPost, true)
}

// Patch updates an entity on the backend and merges the response.
func (e *Engine) Patch(ctx context.Context, p Payload) (*Result, error) {
	return e.save(ctx, p, http.MethodPatch, true)
}

func (e *Engine) save(ctx context.Context, p Payload, method string, modify bool) (*Result, error) {
	m, err := e.mutator(p.Type)
	if err != nil {
		return nil, err
	}
	model := m.Model()

	body := requestBody(p)
	if modify {
		if body, err = e.beforeSave(ctx, model.Name, p); err != nil {
			return nil, err
		}
	}

	// POST всегда уходит на коллекцию, id есть только у существующих сущностей
	withID := method != http.MethodPost && !p.IsAll()

	data, err := e.request(ctx, strings.ToLower(method), model.Name, api.Request{
		Method: method,
		URL:    endpoint(model, p, withID),
		Data:   body,
		Header: p.Header,
		Query:  p.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", model.Name, err)
	}

	return e.addToStore(ctx, m, data)
}

// Delete removes entities on the backend. A payload addressing all entities
// issues one bulk PATCH <url>/delete with the items as body; otherwise a
// DELETE for p.ID is sent. The cache is updated only after success.
func (e *Engine) Delete(ctx context.Context, p Payload) error {
	return e.remove(ctx, p, true)
}

func (e *Engine) remove(ctx context.Context, p Payload, modify bool) error {
	m, err := e.mutator(p.Type)
	if err != nil {
		return err
	}
	model := m.Model()

	if p.IsAll() {
		var body any = p.Items
		if modify {
			if body, err = e.modifiers.ApplyAll(ctx, modifier.BeforeSave, model.Name, p.Items); err != nil {
				return err
			}
		}
		if _, err := e.request(ctx, "delete", model.Name, api.Request{
			Method: http.MethodPatch,
			URL:    endpoint(model, p, false) + "/delete",
			Data:   body,
			Header: p.Header,
			Query:  p.Query,
		}); err != nil {
			return fmt.Errorf("failed to delete %s: %w", model.Name, err)
		}

		ids := make([]string, 0, len(p.Items))
		for _, item := range p.Items {
			ids = append(ids, item.ID())
		}
		m.Delete(ids...)
		return nil
	}

	if p.ID == "" {
		return fmt.Errorf("delete %s: %w", model.Name, ErrMissingID)
	}
	if _, err := e.request(ctx, "delete", model.Name, api.Request{
		Method: http.MethodDelete,
		URL:    endpoint(model, p, true),
		Header: p.Header,
		Query:  p.Query,
	}); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", model.Name, p.ID, err)
	}

	m.Delete(p.ID)
	return nil
}

// Add merges already known data into the cache without a request.
func (e *Engine) Add(ctx context.Context, p Payload) (*Result, error) {
	m, err := e.mutator(p.Type)
	if err != nil {
		return nil, err
	}
	if p.Clear {
		m.Clear()
	}

	switch {
	case p.Data != nil:
		return e.addToStore(ctx, m, p.Data)
	case p.Items != nil:
		return e.addToStore(ctx, m, p.Items)
	}
	return &Result{}, nil
}

// QueueAction records a local write for a later flush. The entity is shown
// right away in its afterGet form, while the beforeSave form is what the
// flush will send. A post without id gets a generated one.
//
// Invalid actions are logged and dropped by the store; the returned entry
// then has a zero Seq.
func (e *Engine) QueueAction(ctx context.Context, a models.QueuedAction) (models.QueuedAction, error) {
	m, err := e.mutator(a.Type)
	if err != nil {
		return models.QueuedAction{}, err
	}
	model := m.Model()

	data := a.Data.Clone()
	if data == nil {
		data = models.Entity{}
	}
	if a.Action == models.ActionPost && data.ID() == "" {
		data[models.IDField] = e.newID()
	}
	id := data[models.IDField]

	display, err := e.prepare(ctx, model, data)
	if err != nil {
		return models.QueuedAction{}, err
	}
	toQueue, err := e.modifiers.Apply(ctx, modifier.BeforeSave, model.Name, data)
	if err != nil {
		return models.QueuedAction{}, err
	}
	if toQueue == nil {
		toQueue = models.Entity{}
	}
	if toQueue.ID() == "" {
		toQueue[models.IDField] = id
	}

	queued, ok := m.QueueAction(store.Enqueue{
		Display: display,
		Payload: models.QueuedAction{
			Type:   model.Name,
			URL:    a.URL,
			Action: a.Action,
			Data:   toQueue,
		},
	})
	if ok {
		e.metrics.Queued(model.Name, string(a.Action))
	}
	return queued, nil
}

// ProcessAction sends one queued entry right away. The queue itself is not
// touched; beforeSave was already applied when the entry was queued.
func (e *Engine) ProcessAction(ctx context.Context, a models.QueuedAction) (*Result, error) {
	m, err := e.mutator(a.Type)
	if err != nil {
		return nil, err
	}
	p := Payload{
		Type: a.Type,
		ID:   a.ID(),
		Data: a.Data,
		URL:  a.URL,
	}

	switch a.Action {
	case models.ActionDelete:
		if err := e.remove(ctx, p, false); err != nil {
			return nil, err
		}
		return &Result{}, nil
	case models.ActionPatch:
		return e.save(ctx, p, http.MethodPatch, false)
	case models.ActionPost:
		res, err := e.save(ctx, p, http.MethodPost, false)
		if err != nil {
			return nil, err
		}
		// сервер мог назначить свой id: оптимистичная запись больше не нужна
		if res.Entity != nil && res.Entity.ID() != "" && res.Entity.ID() != p.ID {
			m.Delete(p.ID)
		}
		return res, nil
	}

	e.logger.Warn("Action is not processable", "model", a.Type, "action", a.Action)
	return nil, fmt.Errorf("unknown action %q", a.Action)
}

// CancelAction drops one queued entry. Items and OriginItems are left as is.
func (e *Engine) CancelAction(_ context.Context, a models.QueuedAction) (bool, error) {
	m, err := e.mutator(a.Type)
	if err != nil {
		return false, err
	}
	return m.UnqueueAction(a), nil
}

// Reset clears every slice of the store.
func (e *Engine) Reset(_ context.Context) {
	e.store.Reset()
}
