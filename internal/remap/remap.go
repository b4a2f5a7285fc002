// Package remap regenerates STIX identifiers and rewrites every reference to
// them. It works in two phases: NewMap builds the complete old->new table,
// then Rewrite applies it. Building the whole table first means a reference
// resolves no matter where its target sits in the sequence.
package remap

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/stixkit/internal/stix"
)

// DefaultMaxDepth bounds how deeply nested a single object may be.
const DefaultMaxDepth = 1000

var (
	// ErrMaxDepth is returned when an object nests deeper than the configured limit.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")

	// ErrCollision is returned when a generated identifier is not unique in its batch.
	ErrCollision = errors.New("identifier collision")
)

// Map maps old identifiers to their replacements.
type Map map[string]string

// Options controls map generation and rewriting.
type Options struct {
	// Exempt kinds keep their identifiers. marking-definition is always exempt.
	Exempt []stix.Kind
	// MaxDepth overrides DefaultMaxDepth when > 0.
	MaxDepth int
	// NewToken returns the random suffix for a new identifier. Defaults to a v4 UUID.
	NewToken func() string
}

func (o Options) exempt(k stix.Kind) bool {
	if k == stix.KindMarkingDefinition {
		return true
	}
	for _, e := range o.Exempt {
		if e == k {
			return true
		}
	}
	return false
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

func (o Options) token() string {
	if o.NewToken != nil {
		return o.NewToken()
	}
	return uuid.New().String()
}

// NewMap generates a fresh identifier for every object that has an id and is
// not exempt. The type prefix is taken from the existing id, not the "type"
// field. Objects sharing an id share the new one.
func NewMap(objects []stix.Object, opts Options) (Map, error) {
	m := make(Map)
	seen := make(map[string]struct{})

	for _, obj := range objects {
		if _, ok := obj["id"].(string); !ok {
			continue
		}
		if opts.exempt(obj.Kind()) {
			continue
		}
		seen[obj.ID()] = struct{}{}
	}

	issued := make(map[string]struct{}, len(seen))
	for _, obj := range objects {
		oldID := obj.ID()
		if _, ok := seen[oldID]; !ok {
			continue
		}
		if _, done := m[oldID]; done {
			continue
		}
		newID := stix.IDPrefix(oldID) + "--" + opts.token()
		if _, dup := issued[newID]; dup {
			return nil, fmt.Errorf("%s generated twice: %w", newID, ErrCollision)
		}
		if _, old := seen[newID]; old {
			return nil, fmt.Errorf("%s already present in batch: %w", newID, ErrCollision)
		}
		issued[newID] = struct{}{}
		m[oldID] = newID
	}
	return m, nil
}

// Rewrite replaces every string value equal to a key of m with its mapped
// value, at any depth, in every object. Keys are never rewritten and only
// whole-string matches count. It returns the number of values replaced.
func Rewrite(objects []stix.Object, m Map, opts Options) (int, error) {
	if len(m) == 0 {
		return 0, nil
	}
	w := walker{m: m, max: opts.maxDepth()}
	for i, obj := range objects {
		// the object's own id first, independent of the walk
		if newID, ok := m[obj.ID()]; ok {
			obj["id"] = newID
			w.replaced++
		}
		if err := w.walk(map[string]any(obj), 0, fmt.Sprintf("/objects/%d", i)); err != nil {
			return w.replaced, err
		}
	}
	return w.replaced, nil
}

// Apply runs NewMap then Rewrite over objects.
func Apply(objects []stix.Object, opts Options) (Map, int, error) {
	m, err := NewMap(objects, opts)
	if err != nil {
		return nil, 0, err
	}
	n, err := Rewrite(objects, m, opts)
	if err != nil {
		return nil, n, err
	}
	return m, n, nil
}

type walker struct {
	m        Map
	max      int
	replaced int
}

func (w *walker) walk(v any, depth int, path string) error {
	if depth > w.max {
		return fmt.Errorf("%s: %w (%d)", path, ErrMaxDepth, w.max)
	}
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if s, ok := child.(string); ok {
				if newID, hit := w.m[s]; hit {
					node[k] = newID
					w.replaced++
				}
				continue
			}
			if err := w.walk(child, depth+1, path+"/"+k); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range node {
			if s, ok := child.(string); ok {
				if newID, hit := w.m[s]; hit {
					node[i] = newID
					w.replaced++
				}
				continue
			}
			if err := w.walk(child, depth+1, fmt.Sprintf("%s/%d", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}
