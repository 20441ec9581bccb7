package models

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// IDField is the property every entity is keyed by inside its slice.
const IDField = "id"

// Entity представляет одну запись модели в том виде, в каком ее отдает backend:
// декодированный JSON объект, ключи - имена свойств.
type Entity map[string]any

// ID returns the entity id rendered as the slice key.
// Returns empty string if the entity has no id.
func (e Entity) ID() string {
	if e == nil {
		return ""
	}
	return FormatID(e[IDField])
}

// Clone creates a deep independent copy of the entity
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = CloneValue(v)
	}
	return out
}

// FormatID renders an id value as a string key, so that 7 and "7" address
// the same entity.
func FormatID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	default:
		return fmt.Sprint(id)
	}
}

// CloneValue deep-copies JSON-like values (maps, slices, scalars).
// Values of other kinds are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case Entity:
		return val.Clone()
	case map[string]any:
		return map[string]any(Entity(val).Clone())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []Entity:
		out := make([]Entity, len(val))
		for i, item := range val {
			out[i] = item.Clone()
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = map[string]any(Entity(item).Clone())
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// Equal reports whether two JSON-like values are deeply equal.
// Numbers compare by value regardless of their Go type (decoded JSON gives
// float64, scripts give int64).
func Equal(a, b any) bool {
	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		return ok && na == nb
	}

	ma, okA := AsEntity(a)
	mb, okB := AsEntity(b)
	if okA || okB {
		if !okA || !okB || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	}

	la, okA := asSlice(a)
	lb, okB := asSlice(b)
	if okA || okB {
		if !okA || !okB || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

// IsFunc reports whether v is a function value. Such properties are not data
// and never take part in merges.
func IsFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// AsEntity converts a decoded JSON object into an Entity.
func AsEntity(v any) (Entity, bool) {
	switch val := v.(type) {
	case Entity:
		return val, val != nil
	case map[string]any:
		return Entity(val), val != nil
	default:
		return nil, false
	}
}

// AsList converts a decoded JSON array of objects into entities.
// Non-object elements make the conversion fail.
func AsList(v any) ([]Entity, bool) {
	switch val := v.(type) {
	case []Entity:
		return val, true
	case []map[string]any:
		out := make([]Entity, 0, len(val))
		for _, item := range val {
			out = append(out, Entity(item))
		}
		return out, true
	case []any:
		out := make([]Entity, 0, len(val))
		for _, item := range val {
			e, ok := AsEntity(item)
			if !ok {
				return nil, false
			}
			out = append(out, e)
		}
		return out, true
	default:
		return nil, false
	}
}

// SortedIDs returns the keys of an id-keyed map in a stable order:
// numeric ids ascending first, then the rest lexically.
func SortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, errI := strconv.ParseFloat(ids[i], 64)
		nj, errJ := strconv.ParseFloat(ids[j], 64)
		switch {
		case errI == nil && errJ == nil:
			return ni < nj
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}

func asSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []Entity:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
