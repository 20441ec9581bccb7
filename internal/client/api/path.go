package api

import (
	"strconv"
	"strings"
)

// DefaultDataPath locates the payload inside a response envelope
const DefaultDataPath = "data"

// Lookup walks a dotted path ("data.result.items") through decoded JSON.
// Numeric segments index into arrays. An empty path returns v itself.
func Lookup(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}

	current := v
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
