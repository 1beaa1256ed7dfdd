package document

import (
	"encoding/json"
	"errors"
	"fmt"

	"docstore/internal/revision"
)

// Reserved top-level keys.
const (
	KeyID        = "_id"
	KeyRev       = "_rev"
	KeyDeleted   = "_deleted"
	KeyMeta      = "_meta"
	KeyHistory   = "history"
	KeyConflicts = "conflicts"
)

// ErrNotObject is returned when input does not describe a JSON object.
var ErrNotObject = errors.New("a document must be an object")

// Body is a document body: JSON-compatible values keyed by string. Nested
// objects are plain map[string]any values.
type Body map[string]any

// ParseBody decodes JSON text into a Body. Numbers decode as float64 so that
// hashing matches their JSON text form.
func ParseBody(data []byte) (Body, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse document: %w", ErrNotObject)
	}
	return Body(obj), nil
}

// AsBody converts a supported representation into a Body: a Body, a
// map[string]any, JSON text as string or []byte, or nil (an empty body).
func AsBody(v any) (Body, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Body:
		return val, nil
	case map[string]any:
		return Body(val), nil
	case string:
		return ParseBody([]byte(val))
	case []byte:
		return ParseBody(val)
	default:
		return nil, fmt.Errorf("unsupported document type %T: %w", v, ErrNotObject)
	}
}

// ID returns the "_id" field, or "" when absent or not a string.
func (b Body) ID() string {
	id, _ := b[KeyID].(string)
	return id
}

// Rev returns the decoded "_rev" field and whether it was present.
func (b Body) Rev() (revision.ID, bool) {
	v, ok := b[KeyRev]
	if !ok || v == nil {
		return revision.ID{}, false
	}
	return revision.FromValue(v), true
}

// Deleted reports whether the body is a tombstone of any kind.
func (b Body) Deleted() bool {
	_, ok := b[KeyDeleted]
	return ok
}

// GloballyDeleted reports whether the body is a terminal tombstone.
func (b Body) GloballyDeleted() bool {
	deleted, _ := b[KeyDeleted].(bool)
	return deleted
}

// Clone returns a deep copy of the body.
func (b Body) Clone() Body {
	if b == nil {
		return nil
	}
	return Body(cloneValue(map[string]any(b)).(map[string]any))
}

// MarshalJSON keeps nil bodies encoding as an empty object.
func (b Body) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(b))
}

// withoutMeta returns a shallow copy of b without "_meta" together with the
// stripped metadata.
func (b Body) withoutMeta() (Body, map[string]any) {
	out := make(Body, len(b))
	for k, v := range b {
		out[k] = v
	}
	raw, ok := out[KeyMeta]
	delete(out, KeyMeta)
	if !ok || raw == nil {
		return out, nil
	}
	meta, _ := asObject(raw)
	return out, meta
}

// meta returns the "_meta" object, or nil when absent or malformed.
func (b Body) meta() map[string]any {
	m, _ := asObject(b[KeyMeta])
	return m
}

// metaHistory decodes "_meta.history".
func metaHistory(meta map[string]any) []revision.ID {
	items := asList(meta[KeyHistory])
	revs := make([]revision.ID, 0, len(items))
	for _, item := range items {
		revs = append(revs, revision.FromValue(item))
	}
	return revs
}

// metaConflicts decodes "_meta.conflicts", skipping entries that are not
// objects. It returns nil when there are none.
func metaConflicts(meta map[string]any) []Body {
	var bodies []Body
	for _, item := range asList(meta[KeyConflicts]) {
		if obj, ok := asObject(item); ok {
			bodies = append(bodies, Body(obj))
		}
	}
	return bodies
}

func asObject(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case Body:
		return map[string]any(val), true
	default:
		return nil, false
	}
}

func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i := range val {
			out[i] = val[i]
		}
		return out
	case []revision.ID:
		out := make([]any, len(val))
		for i := range val {
			out[i] = val[i]
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = val[i]
		}
		return out
	case []Body:
		out := make([]any, len(val))
		for i := range val {
			out[i] = map[string]any(val[i])
		}
		return out
	default:
		return nil
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case Body:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}
