package store

import (
	"fmt"

	"github.com/iudanet/gophcache/internal/models"
)

// Enqueue carries one local write: the form shown optimistically in Items and
// the payload sent when the queue is flushed.
type Enqueue struct {
	Display models.Entity
	Payload models.QueuedAction
}

// Mutator is the set of mutations bound to one model's slice.
type Mutator struct {
	store *Store
	model *models.Model
}

// Model returns the descriptor the mutator is bound to.
func (m *Mutator) Model() *models.Model {
	return m.model
}

// Slice returns a deep copy of the model's slice.
func (m *Mutator) Slice() Slice {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.slice().clone()
}

// Item returns a copy of the live entity with the given id.
func (m *Mutator) Item(id string) (models.Entity, bool) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	e, ok := m.slice().Items[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Origin returns a copy of the origin snapshot with the given id.
func (m *Mutator) Origin(id string) (models.Entity, bool) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	e, ok := m.slice().OriginItems[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Add merges entities into the slice (ADD). Existing entities keep their
// identity and only receive the fields that changed. Every merged entity gets
// a fresh origin snapshot.
func (m *Mutator) Add(items ...models.Entity) {
	m.store.write(m.model.Name, func() (string, any) {
		for _, item := range items {
			m.store.patchEntity(m.model, item, true)
		}
		return m.model.MutationName(models.VerbAdd), items
	})
}

// Restore puts entities back into Items as they are given, replacing the
// live ones (RESTORE). Fields added by local edits are dropped and the origin
// snapshots stay as they were.
func (m *Mutator) Restore(items ...models.Entity) {
	m.store.write(m.model.Name, func() (string, any) {
		for _, item := range items {
			m.store.replaceEntity(m.model, item)
		}
		return m.model.MutationName(models.VerbRestore), items
	})
}

// Delete removes entities from Items and OriginItems (DELETE).
func (m *Mutator) Delete(ids ...string) {
	m.store.write(m.model.Name, func() (string, any) {
		sl := m.slice()
		for _, id := range ids {
			if _, ok := sl.Items[id]; ok {
				delete(sl.Items, id)
				sl.Revision++
			}
			delete(sl.OriginItems, id)
		}
		return m.model.MutationName(models.VerbDelete), ids
	})
}

// Clear resets the slice to its initial shape (CLEAR).
func (m *Mutator) Clear() {
	m.store.write(m.model.Name, func() (string, any) {
		prev := m.slice()
		fresh := newSlice(m.model)
		fresh.Revision = prev.Revision + 1
		m.store.slices[m.model.Name] = fresh
		return m.model.MutationName(models.VerbClear), nil
	})
}

// Edit applies an optimistic local change to an existing live entity (EDIT).
// The origin snapshot is left as is, so the change can be rolled back.
func (m *Mutator) Edit(changes models.Entity) {
	m.store.write(m.model.Name, func() (string, any) {
		id := changes.ID()
		sl := m.slice()
		current, ok := sl.Items[id]
		if !ok {
			m.store.logger.Warn("Edit skipped: entity not found", "model", m.model.Name, "entity_id", id)
			return "", nil
		}

		entity := changes.Clone()
		m.store.patchReferences(m.model, entity, false)
		sl.Revision += mergeFields(current, entity)

		return m.model.MutationName(models.VerbEdit), changes
	})
}

// QueueAction records a local write (QUEUE_ACTION):
//   - post shows the entity in Items right away and appends to the post sequence;
//   - patch replaces any pending patch for the same id, Items untouched;
//   - delete removes the entity from Items right away and replaces any pending delete.
//
// Unknown actions and payloads without id are logged and dropped.
// Returns the queued entry with its assigned Seq.
func (m *Mutator) QueueAction(in Enqueue) (models.QueuedAction, bool) {
	action := in.Payload.Action
	if !action.Valid() {
		m.store.logger.Warn("Action is not storable", "model", m.model.Name, "action", action)
		return models.QueuedAction{}, false
	}
	id := in.Payload.ID()
	if id == "" {
		m.store.logger.Warn("Queued action has no entity id", "model", m.model.Name, "action", action)
		return models.QueuedAction{}, false
	}

	var queued models.QueuedAction
	m.store.write(m.model.Name, func() (string, any) {
		sl := m.slice()

		m.store.seq++
		queued = in.Payload.Clone()
		queued.Seq = m.store.seq
		if queued.Type == "" {
			queued.Type = m.model.Name
		}

		switch action {
		case models.ActionPost:
			display := in.Display
			if display == nil {
				display = in.Payload.Data
			}
			display = display.Clone()
			display[models.IDField] = in.Payload.Data[models.IDField]
			m.store.patchEntity(m.model, display, false)
		case models.ActionDelete:
			if _, ok := sl.Items[id]; ok {
				delete(sl.Items, id)
				sl.Revision++
			}
		}

		sl.ActionQueue.push(queued)
		return m.model.MutationName(models.VerbQueueAction), queued.Clone()
	})

	return queued.Clone(), true
}

// UnqueueAction drops one pending entry without touching Items or
// OriginItems (UNQUEUE_ACTION). A non-zero Seq restricts the removal to that
// exact entry.
func (m *Mutator) UnqueueAction(a models.QueuedAction) bool {
	var removed bool
	m.store.write(m.model.Name, func() (string, any) {
		removed = m.slice().ActionQueue.remove(a)
		if !removed {
			return "", nil
		}
		return m.model.MutationName(models.VerbUnqueueAction), a
	})
	return removed
}

// ResetQueue empties the three queue containers (RESET_QUEUE).
func (m *Mutator) ResetQueue() {
	m.store.write(m.model.Name, func() (string, any) {
		m.slice().ActionQueue = newActionQueue()
		return m.model.MutationName(models.VerbResetQueue), nil
	})
}

// Settle acknowledges flushed entries in one step. When the queue holds
// exactly those entries it is reset (reported as RESET_QUEUE); otherwise only
// the flushed entries still carrying the same Seq are removed (reported as
// UNQUEUE_ACTION), so writes queued during the flush survive.
func (m *Mutator) Settle(done []models.QueuedAction) {
	if len(done) == 0 {
		return
	}
	m.store.write(m.model.Name, func() (string, any) {
		q := &m.slice().ActionQueue

		exact := q.Len() == len(done)
		for _, a := range done {
			if !exact {
				break
			}
			exact = q.Contains(a)
		}
		if exact {
			*q = newActionQueue()
			return m.model.MutationName(models.VerbResetQueue), done
		}

		for _, a := range done {
			if a.Seq == 0 {
				continue
			}
			q.remove(a)
		}
		return m.model.MutationName(models.VerbUnqueueAction), done
	})
}

func (m *Mutator) slice() *Slice {
	return m.store.slices[m.model.Name]
}

// registerHandlers exposes the mutator under its mutation names.
func (s *Store) registerHandlers(m *Mutator) {
	name := m.model.MutationName

	s.handlers[name(models.VerbAdd)] = func(payload any) error {
		items, err := toEntities(payload)
		if err != nil {
			return err
		}
		m.Add(items...)
		return nil
	}
	s.handlers[name(models.VerbRestore)] = func(payload any) error {
		items, err := toEntities(payload)
		if err != nil {
			return err
		}
		m.Restore(items...)
		return nil
	}
	s.handlers[name(models.VerbDelete)] = func(payload any) error {
		ids, err := toIDs(payload)
		if err != nil {
			return err
		}
		m.Delete(ids...)
		return nil
	}
	s.handlers[name(models.VerbClear)] = func(any) error {
		m.Clear()
		return nil
	}
	s.handlers[name(models.VerbEdit)] = func(payload any) error {
		e, ok := models.AsEntity(payload)
		if !ok {
			return fmt.Errorf("%w: %T", ErrInvalidPayload, payload)
		}
		m.Edit(e)
		return nil
	}
	s.handlers[name(models.VerbQueueAction)] = func(payload any) error {
		switch p := payload.(type) {
		case Enqueue:
			m.QueueAction(p)
		case *Enqueue:
			m.QueueAction(*p)
		case models.QueuedAction:
			m.QueueAction(Enqueue{Payload: p})
		default:
			return fmt.Errorf("%w: %T", ErrInvalidPayload, payload)
		}
		return nil
	}
	s.handlers[name(models.VerbUnqueueAction)] = func(payload any) error {
		a, ok := payload.(models.QueuedAction)
		if !ok {
			return fmt.Errorf("%w: %T", ErrInvalidPayload, payload)
		}
		m.UnqueueAction(a)
		return nil
	}
	s.handlers[name(models.VerbResetQueue)] = func(any) error {
		m.ResetQueue()
		return nil
	}
	s.handlers[name(models.VerbSettleQueue)] = func(payload any) error {
		done, ok := payload.([]models.QueuedAction)
		if !ok {
			return fmt.Errorf("%w: %T", ErrInvalidPayload, payload)
		}
		m.Settle(done)
		return nil
	}
}

func toEntities(payload any) ([]models.Entity, error) {
	if e, ok := models.AsEntity(payload); ok {
		return []models.Entity{e}, nil
	}
	if list, ok := models.AsList(payload); ok {
		return list, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidPayload, payload)
}

func toIDs(payload any) ([]string, error) {
	switch p := payload.(type) {
	case string:
		return []string{p}, nil
	case []string:
		return p, nil
	}
	if e, ok := models.AsEntity(payload); ok {
		return []string{e.ID()}, nil
	}
	if list, ok := models.AsList(payload); ok {
		ids := make([]string, 0, len(list))
		for _, e := range list {
			ids = append(ids, e.ID())
		}
		return ids, nil
	}
	if raw, ok := payload.([]any); ok {
		ids := make([]string, 0, len(raw))
		for _, v := range raw {
			if e, ok := models.AsEntity(v); ok {
				ids = append(ids, e.ID())
				continue
			}
			ids = append(ids, models.FormatID(v))
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidPayload, payload)
}
