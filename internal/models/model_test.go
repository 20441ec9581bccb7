package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	refs := map[string]string{"parts": "part"}
	r, err := NewRegistry(
		&Model{Name: "widget", References: refs},
		&Model{Name: "category", Plural: "Categories"},
	)
	require.NoError(t, err)

	w, ok := r.Model("widget")
	require.True(t, ok)
	assert.Equal(t, "widgets", w.Plural)
	assert.Equal(t, "ADD_WIDGET", w.MutationName(VerbAdd))
	assert.Equal(t, "QUEUE_ACTION_WIDGET", w.MutationName(VerbQueueAction))

	// реестр владеет своей копией ссылок
	refs["owner"] = "user"
	assert.NotContains(t, w.References, "owner")

	c, _ := r.Model("category")
	assert.Equal(t, "categories", c.GetterName())

	var names []string
	for _, m := range r.Models() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"widget", "category"}, names)

	_, ok = r.Model("gadget")
	assert.False(t, ok)
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		models []*Model
	}{
		{name: "nil model", models: []*Model{nil}},
		{name: "empty name", models: []*Model{{Name: " "}}},
		{name: "duplicate name", models: []*Model{{Name: "a"}, {Name: "a"}}},
		{name: "duplicate plural", models: []*Model{{Name: "a", Plural: "items"}, {Name: "b", Plural: "Items"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.models...)
			assert.ErrorIs(t, err, ErrInvalidModel)
		})
	}
}

func TestAction_Valid(t *testing.T) {
	for _, a := range Actions {
		assert.True(t, a.Valid())
	}
	assert.False(t, Action("put").Valid())
}

func TestQueuedAction_Clone(t *testing.T) {
	q := QueuedAction{Type: "widget", Action: ActionPatch, Data: Entity{"id": 3, "v": []any{1}}, Seq: 4}

	c := q.Clone()
	c.Data["v"].([]any)[0] = 2

	assert.Equal(t, "3", q.ID())
	assert.Equal(t, 1, q.Data["v"].([]any)[0])
	assert.Equal(t, uint64(4), c.Seq)
}
