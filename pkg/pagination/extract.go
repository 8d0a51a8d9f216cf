package pagination

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ExtractRule describes how to pull the target identifier out of an
// arbitrarily shaped response: a set of accepted key-name variants plus
// positive-integer coercion of the values found under them.
type ExtractRule struct {
	// KeyVariants are the accepted names for the target field,
	// matched case-insensitively at every mapping node.
	KeyVariants []string
}

// DefaultExtractRule matches the universe-ID spellings observed across
// upstream deployments.
func DefaultExtractRule() ExtractRule {
	return ExtractRule{
		KeyVariants: []string{"universeId", "universe_id", "universeID"},
	}
}

// Extract traverses the full decoded value graph and returns every
// distinct positive-integer value found under a matching key, in
// first-seen order. Already-visited maps and slices are skipped to
// guard against aliasing.
func (r ExtractRule) Extract(value any) []int64 {
	e := extractor{
		rule:    r,
		seen:    make(map[int64]bool),
		visited: make(map[uintptr]bool),
	}
	e.walk(value)
	return e.found
}

type extractor struct {
	rule    ExtractRule
	seen    map[int64]bool
	visited map[uintptr]bool
	found   []int64
}

func (e *extractor) walk(value any) {
	switch v := value.(type) {
	case map[string]any:
		if e.alreadyVisited(v) {
			return
		}
		// Sorted keys keep extraction order deterministic; Go map
		// iteration order is not.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			child := v[key]
			if e.rule.matches(key) {
				if id, ok := coerceID(child); ok && !e.seen[id] {
					e.seen[id] = true
					e.found = append(e.found, id)
				}
			}
			e.walk(child)
		}
	case []any:
		if e.alreadyVisited(v) {
			return
		}
		for _, child := range v {
			e.walk(child)
		}
	}
}

func (e *extractor) alreadyVisited(container any) bool {
	ptr := reflect.ValueOf(container).Pointer()
	if e.visited[ptr] {
		return true
	}
	e.visited[ptr] = true
	return false
}

func (r ExtractRule) matches(key string) bool {
	for _, variant := range r.KeyVariants {
		if strings.EqualFold(key, variant) {
			return true
		}
	}
	return false
}

// coerceID accepts positive integers, either native JSON numbers with
// an integral value or numeric strings.
func coerceID(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		id := int64(v)
		if float64(id) == v && id > 0 {
			return id, true
		}
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}
