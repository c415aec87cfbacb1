// Package documents defines the contract for the remote document store that backs
// posts, users and save records. Backends live in internal/db and internal/appwrite;
// services only depend on the Client interface declared here.
package documents

import (
	"fmt"
	"time"
)

// System fields are owned by the store and may be used in filters.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// Document is a schema-flexible record in a collection.
// ID, CreatedAt and UpdatedAt are assigned by the store and never written by callers.
type Document struct {
	CreatedAt  time.Time      `json:"$createdAt"`
	UpdatedAt  time.Time      `json:"$updatedAt"`
	Fields     map[string]any `json:"fields"`
	ID         string         `json:"$id"`
	Collection string         `json:"$collectionId"`
}

// Get returns the value of a field, resolving the system fields as well.
func (d *Document) Get(field string) (any, bool) {
	switch field {
	case FieldID:
		return d.ID, true
	case FieldCreatedAt:
		return d.CreatedAt, true
	case FieldUpdatedAt:
		return d.UpdatedAt, true
	}
	if d.Fields == nil {
		return nil, false
	}
	v, ok := d.Fields[field]
	return v, ok
}

// String returns a string field, or "" when absent or not a string.
func (d *Document) String(field string) string {
	v, _ := d.Get(field)
	s, _ := v.(string)
	return s
}

// StringPtr returns a string field, or nil when absent, null or not a string.
func (d *Document) StringPtr(field string) *string {
	v, ok := d.Get(field)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// StringSlice returns the string elements of an array field.
// Non-array values yield an empty slice and non-string elements are dropped.
func (d *Document) StringSlice(field string) []string {
	v, _ := d.Get(field)
	switch arr := v.(type) {
	case []string:
		out := make([]string, len(arr))
		copy(out, arr)
		return out
	case []any:
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// RefIDs returns the identifiers of a relation array field whose elements are
// either bare IDs or embedded documents carrying "$id".
func (d *Document) RefIDs(field string) []string {
	v, _ := d.Get(field)
	arr, ok := v.([]any)
	if !ok {
		return d.StringSlice(field)
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if id := RefID(item); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// RefID extracts the identifier from a relation value: a bare ID string, an
// embedded object with "$id" (or "id"), or a *Document.
func RefID(v any) string {
	switch ref := v.(type) {
	case string:
		return ref
	case map[string]any:
		if id, ok := ref[FieldID].(string); ok && id != "" {
			return id
		}
		if id, ok := ref["id"].(string); ok {
			return id
		}
	case *Document:
		if ref != nil {
			return ref.ID
		}
	}
	return ""
}

// Clone returns a copy of the document whose field map and array values can be
// modified without affecting the original.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Fields = CloneFields(d.Fields)
	return &out
}

// CloneFields copies a field map one level deep, including array and object values.
func CloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		cp := make([]any, len(val))
		for i := range val {
			cp[i] = cloneValue(val[i])
		}
		return cp
	case []string:
		cp := make([]string, len(val))
		copy(cp, val)
		return cp
	case map[string]any:
		return CloneFields(val)
	default:
		return v
	}
}

// ValidateFields rejects writes that try to set store-owned fields.
func ValidateFields(fields map[string]any) error {
	for k := range fields {
		if k == "" {
			return fmt.Errorf("%w: empty field name", ErrBadRequest)
		}
		if k[0] == '$' {
			return fmt.Errorf("%w: field %q is store-owned", ErrBadRequest, k)
		}
	}
	return nil
}
