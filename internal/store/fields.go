// internal/store/fields.go
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jmulder/tunequiz/internal/models"
)

// applyFields applies a field map onto a decoded JSON document in place.
// Paths are applied in sorted order so that a parent write ("activeRound")
// lands before a nested write into it ("activeRound.guesses.p1") when both
// appear in one update. A nil value deletes the field.
func applyFields(doc map[string]any, fields map[string]any) error {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		parts := strings.Split(path, ".")
		node := doc
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				if existing, present := node[part]; present && existing != nil {
					return fmt.Errorf("field path %q traverses non-object field %q", path, part)
				}
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		if fields[path] == nil {
			delete(node, leaf)
			continue
		}
		val, err := toJSONValue(fields[path])
		if err != nil {
			return fmt.Errorf("encode field %q: %w", path, err)
		}
		node[leaf] = val
	}
	return nil
}

// cloneDoc deep-copies a decoded JSON document.
func cloneDoc(doc map[string]any) (map[string]any, error) {
	out, err := toJSONValue(doc)
	if err != nil {
		return nil, err
	}
	cp, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document is not an object")
	}
	return cp, nil
}

// toJSONValue normalizes an arbitrary Go value into the generic JSON shape
// the document is stored in.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeSession converts a typed session into the generic document shape.
func encodeSession(s *models.Session) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode session document: %w", err)
	}
	return doc, nil
}

// decodeSession converts a generic document back into the typed session.
func decodeSession(doc map[string]any) (*models.Session, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode session document: %w", err)
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
