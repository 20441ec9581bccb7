package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/internal/models"
)

func TestFilter_Select(t *testing.T) {
	items := map[string]models.Entity{
		"1": {"id": "1", "name": "gear", "price": float64(12)},
		"2": {"id": "2", "name": "bolt", "price": float64(3)},
		"3": {"id": "3", "name": "gasket", "price": float64(40), "tags": []any{"seal"}},
	}

	tests := []struct {
		name       string
		expression string
		want       []string
	}{
		{name: "numeric", expression: "price > 10", want: []string{"1", "3"}},
		{name: "string", expression: `name startsWith "g" && price < 20`, want: []string{"1"}},
		{name: "missing property", expression: "tags != nil", want: []string{"3"}},
		{name: "item variable", expression: `item.id == "2"`, want: []string{"2"}},
		{name: "membership", expression: `"seal" in (tags ?? [])`, want: []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expression)
			require.NoError(t, err)
			assert.Equal(t, tt.expression, f.String())

			got, err := f.Select(items)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilter_NilMatchesAll(t *testing.T) {
	var f *Filter
	got, err := f.Select(map[string]models.Entity{"b": {"id": "b"}, "a": {"id": "a"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID())
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("")
	assert.Error(t, err)

	_, err = Compile("price >")
	assert.Error(t, err)

	_, err = Compile(`"not a bool"`)
	assert.Error(t, err)
}
