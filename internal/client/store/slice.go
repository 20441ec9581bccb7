package store

import (
	"slices"
	"time"

	"github.com/iudanet/gophcache/internal/models"
)

// Slice is the part of the state tree that belongs to one model.
type Slice struct {
	// LastLoad is stamped whenever entities are merged into Items.
	LastLoad time.Time `json:"last_load"`

	// Items holds the live entities keyed by id.
	Items map[string]models.Entity `json:"items"`

	// OriginItems holds the last server-confirmed copy of each entity.
	// Used for diffing and rollback only.
	OriginItems map[string]models.Entity `json:"origin_items"`

	ActionQueue ActionQueue `json:"action_queue"`

	// Revision counts writes to live items. An unchanged revision means no
	// live entity was touched.
	Revision uint64 `json:"revision"`
}

// HasAction reports whether any write is queued.
func (s Slice) HasAction() bool {
	return s.ActionQueue.Len() > 0
}

func newSlice(model *models.Model) *Slice {
	s := &Slice{
		Items:       make(map[string]models.Entity, len(model.Initial)),
		OriginItems: make(map[string]models.Entity, len(model.Initial)),
		ActionQueue: newActionQueue(),
	}
	for _, e := range model.Initial {
		id := e.ID()
		if id == "" {
			continue
		}
		s.Items[id] = e.Clone()
		s.OriginItems[id] = e.Clone()
	}
	return s
}

func (s *Slice) clone() Slice {
	out := Slice{
		LastLoad:    s.LastLoad,
		Items:       make(map[string]models.Entity, len(s.Items)),
		OriginItems: make(map[string]models.Entity, len(s.OriginItems)),
		ActionQueue: s.ActionQueue.clone(),
		Revision:    s.Revision,
	}
	for id, e := range s.Items {
		out.Items[id] = e.Clone()
	}
	for id, e := range s.OriginItems {
		out.OriginItems[id] = e.Clone()
	}
	return out
}

// ActionQueue holds the pending writes of a slice.
// Post is ordered; Patch and Delete keep at most one entry per id.
type ActionQueue struct {
	Patch  map[string]models.QueuedAction `json:"patch"`
	Delete map[string]models.QueuedAction `json:"delete"`
	Post   []models.QueuedAction          `json:"post"`

	// enqueue order of the keyed containers
	patchOrder  []string
	deleteOrder []string
}

func newActionQueue() ActionQueue {
	return ActionQueue{
		Post:   []models.QueuedAction{},
		Patch:  map[string]models.QueuedAction{},
		Delete: map[string]models.QueuedAction{},
	}
}

// Len returns the number of pending entries.
func (q ActionQueue) Len() int {
	return len(q.Post) + len(q.Patch) + len(q.Delete)
}

// Entries returns every pending entry in flush order: posts in sequence,
// then patches and deletes in the order their ids were first queued.
func (q ActionQueue) Entries() []models.QueuedAction {
	out := make([]models.QueuedAction, 0, q.Len())
	for _, action := range models.Actions {
		out = append(out, q.Pending(action)...)
	}
	return out
}

// Pending returns the entries queued under one action, in flush order.
func (q ActionQueue) Pending(action models.Action) []models.QueuedAction {
	var (
		keyed map[string]models.QueuedAction
		order []string
	)
	switch action {
	case models.ActionPost:
		out := make([]models.QueuedAction, 0, len(q.Post))
		for _, a := range q.Post {
			out = append(out, a.Clone())
		}
		return out
	case models.ActionPatch:
		keyed, order = q.Patch, q.patchOrder
	case models.ActionDelete:
		keyed, order = q.Delete, q.deleteOrder
	default:
		return nil
	}

	out := make([]models.QueuedAction, 0, len(order))
	for _, id := range order {
		out = append(out, keyed[id].Clone())
	}
	return out
}

// IDs returns the union of ids queued under delete, post and patch.
func (q ActionQueue) IDs() []string {
	seen := make(map[string]bool, q.Len())
	ids := make([]string, 0, q.Len())
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range q.deleteOrder {
		add(id)
	}
	for _, a := range q.Post {
		add(a.ID())
	}
	for _, id := range q.patchOrder {
		add(id)
	}
	return ids
}

// Contains reports whether the exact entry (action, id and seq) is pending.
func (q ActionQueue) Contains(a models.QueuedAction) bool {
	switch a.Action {
	case models.ActionPost:
		return slices.ContainsFunc(q.Post, func(p models.QueuedAction) bool {
			return p.Seq == a.Seq && p.ID() == a.ID()
		})
	case models.ActionPatch:
		p, ok := q.Patch[a.ID()]
		return ok && p.Seq == a.Seq
	case models.ActionDelete:
		p, ok := q.Delete[a.ID()]
		return ok && p.Seq == a.Seq
	}
	return false
}

func (q *ActionQueue) push(a models.QueuedAction) {
	id := a.ID()
	switch a.Action {
	case models.ActionPost:
		q.Post = append(q.Post, a)
	case models.ActionPatch:
		if _, exists := q.Patch[id]; !exists {
			q.patchOrder = append(q.patchOrder, id)
		}
		q.Patch[id] = a
	case models.ActionDelete:
		if _, exists := q.Delete[id]; !exists {
			q.deleteOrder = append(q.deleteOrder, id)
		}
		q.Delete[id] = a
	}
}

// remove drops the entry for a's action and id. A non-zero a.Seq restricts
// the removal to the entry carrying that seq. Reports whether anything was removed.
func (q *ActionQueue) remove(a models.QueuedAction) bool {
	id := a.ID()
	match := func(p models.QueuedAction) bool {
		return p.ID() == id && (a.Seq == 0 || p.Seq == a.Seq)
	}

	switch a.Action {
	case models.ActionPost:
		before := len(q.Post)
		q.Post = slices.DeleteFunc(q.Post, match)
		return len(q.Post) != before
	case models.ActionPatch:
		if p, ok := q.Patch[id]; ok && match(p) {
			delete(q.Patch, id)
			q.patchOrder = slices.DeleteFunc(q.patchOrder, func(s string) bool { return s == id })
			return true
		}
	case models.ActionDelete:
		if p, ok := q.Delete[id]; ok && match(p) {
			delete(q.Delete, id)
			q.deleteOrder = slices.DeleteFunc(q.deleteOrder, func(s string) bool { return s == id })
			return true
		}
	}
	return false
}

func (q ActionQueue) clone() ActionQueue {
	out := newActionQueue()
	for _, a := range q.Post {
		out.Post = append(out.Post, a.Clone())
	}
	for id, a := range q.Patch {
		out.Patch[id] = a.Clone()
	}
	for id, a := range q.Delete {
		out.Delete[id] = a.Clone()
	}
	out.patchOrder = slices.Clone(q.patchOrder)
	out.deleteOrder = slices.Clone(q.deleteOrder)
	return out
}
