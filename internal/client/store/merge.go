package store

import (
	"github.com/iudanet/gophcache/internal/models"
)

// patchEntity merges incoming into the model's slice and returns its id.
// Referenced entities are merged into their own slices first and the owning
// property keeps only their ids. LastLoad is stamped on every merge; when
// confirmed is set an origin snapshot is written as well.
//
// Must be called with the write lock held.
func (s *Store) patchEntity(model *models.Model, incoming models.Entity, confirmed bool) (string, bool) {
	id := incoming.ID()
	if id == "" {
		s.logger.Warn("Skipping entity without id", "model", model.Name)
		return "", false
	}

	entity := incoming.Clone()
	s.patchReferences(model, entity, confirmed)

	sl := s.slices[model.Name]
	if current, exists := sl.Items[id]; exists {
		sl.Revision += mergeFields(current, entity)
	} else {
		for name, value := range entity {
			if models.IsFunc(value) {
				delete(entity, name)
			}
		}
		sl.Items[id] = entity
		sl.Revision++
	}

	if confirmed {
		s.storeOrigin(model, sl, id)
	}
	sl.LastLoad = s.now()

	return id, true
}

// replaceEntity swaps the live entity for incoming as a whole, so fields
// missing from incoming disappear. OriginItems is left alone.
//
// Must be called with the write lock held.
func (s *Store) replaceEntity(model *models.Model, incoming models.Entity) {
	id := incoming.ID()
	if id == "" {
		s.logger.Warn("Skipping entity without id", "model", model.Name)
		return
	}

	entity := incoming.Clone()
	s.patchReferences(model, entity, false)
	for name, value := range entity {
		if models.IsFunc(value) {
			delete(entity, name)
		}
	}

	sl := s.slices[model.Name]
	if current, ok := sl.Items[id]; ok && models.Equal(map[string]any(current), map[string]any(entity)) {
		return
	}
	sl.Items[id] = entity
	sl.Revision++
}

// patchReferences replaces every declared reference property of entity by
// the id (or ids) of the entities it was normalized into.
func (s *Store) patchReferences(model *models.Model, entity models.Entity, confirmed bool) {
	for prop, refName := range model.References {
		raw, ok := entity[prop]
		if !ok || raw == nil {
			continue
		}
		ref, ok := s.registry.Model(refName)
		if !ok {
			s.logger.Warn("Patch error: reference model not found",
				"model", model.Name,
				"reference_model", refName,
				"reference", prop)
			continue
		}
		entity[prop] = s.patchReference(ref, raw, confirmed)
	}
}

func (s *Store) patchReference(ref *models.Model, raw any, confirmed bool) any {
	if list, ok := models.AsList(raw); ok {
		ids := make([]string, 0, len(list))
		for _, e := range list {
			if id, ok := s.patchEntity(ref, e, confirmed); ok {
				ids = append(ids, id)
			}
		}
		return ids
	}

	if e, ok := models.AsEntity(raw); ok {
		if id, ok := s.patchEntity(ref, e, confirmed); ok {
			return id
		}
		return raw
	}

	// Уже нормализованная ссылка: id или список id
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			ids = append(ids, models.FormatID(item))
		}
		return ids
	default:
		return models.FormatID(v)
	}
}

// storeOrigin writes an independent snapshot of the live entity.
func (s *Store) storeOrigin(model *models.Model, sl *Slice, id string) {
	live, ok := sl.Items[id]
	if !ok {
		return
	}
	snapshot := live.Clone()
	if model.BeforeQueue != nil {
		snapshot = model.BeforeQueue(snapshot)
	}
	if snapshot == nil {
		delete(sl.OriginItems, id)
		return
	}
	sl.OriginItems[id] = snapshot
}

// mergeFields copies the data properties of src whose value differs from the
// one held by dst. dst keeps its identity. Returns the number of writes.
func mergeFields(dst, src models.Entity) uint64 {
	var writes uint64
	for name, value := range src {
		if models.IsFunc(value) {
			continue
		}
		if current, ok := dst[name]; ok && models.Equal(current, value) {
			continue
		}
		dst[name] = value
		writes++
	}
	return writes
}
