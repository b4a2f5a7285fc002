package stix

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoObjects is returned when a document has no "objects" sequence.
	ErrNoObjects = errors.New("document has no objects sequence")

	// ErrNotObject is returned when a value expected to be a JSON mapping is not one.
	ErrNotObject = errors.New("value is not a JSON object")
)

// Object is a single STIX object as decoded from JSON. Values are one of
// string, json.Number, bool, nil, map[string]any or []any.
type Object map[string]any

// ID returns the object's "id" or "" when missing or not a string.
func (o Object) ID() string {
	id, _ := o["id"].(string)
	return id
}

// Type returns the object's raw "type" value.
func (o Object) Type() string {
	t, _ := o["type"].(string)
	return t
}

// Kind returns the Kind for the object's "type".
func (o Object) Kind() Kind {
	return KindOf(o.Type())
}

// String returns the named field as a string, or "" if absent or not a string.
func (o Object) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Maps returns the named sequence field filtered to its mapping elements.
func (o Object) Maps(key string) []map[string]any {
	seq, ok := o[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(seq))
	for _, v := range seq {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// IDPrefix returns the type segment of an identifier (before the first "--").
// An identifier without the delimiter is returned whole.
func IDPrefix(id string) string {
	if i := strings.Index(id, "--"); i >= 0 {
		return id[:i]
	}
	return id
}

// Document is a decoded STIX JSON document (usually a bundle).
type Document struct {
	root map[string]any
}

// Decode parses raw JSON into a Document. Numbers are kept as json.Number
// so they are written back exactly as read.
func Decode(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top level: %w", ErrNotObject)
	}
	return &Document{root: root}, nil
}

// Root exposes the decoded top-level mapping.
func (d *Document) Root() map[string]any {
	return d.root
}

// Objects returns the document's objects. Elements are shared with the
// document, so in-place mutation is visible on Encode. Replacing an element
// needs SetObjects.
func (d *Document) Objects() ([]Object, error) {
	raw, ok := d.root["objects"]
	if !ok {
		return nil, ErrNoObjects
	}
	seq, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("objects is %T: %w", raw, ErrNoObjects)
	}
	objs := make([]Object, len(seq))
	for i, v := range seq {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("objects[%d]: %w", i, ErrNotObject)
		}
		objs[i] = Object(m)
	}
	return objs, nil
}

// SetObjects writes objs back as the document's "objects" sequence.
func (d *Document) SetObjects(objs []Object) {
	seq := make([]any, len(objs))
	for i, o := range objs {
		seq[i] = map[string]any(o)
	}
	d.root["objects"] = seq
}

// Encode renders the document as 2-space indented JSON.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return buf.Bytes(), nil
}
