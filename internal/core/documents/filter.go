package documents

import (
	"encoding/json"
	"fmt"
)

// Page size limits applied by every backend.
const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// FilterMethod identifies the kind of query filter.
type FilterMethod string

const (
	MethodEqual       FilterMethod = "equal"
	MethodSearch      FilterMethod = "search"
	MethodOrderAsc    FilterMethod = "orderAsc"
	MethodOrderDesc   FilterMethod = "orderDesc"
	MethodLimit       FilterMethod = "limit"
	MethodCursorAfter FilterMethod = "cursorAfter"
)

// Filter is one query clause passed to ListDocuments.
// Its JSON form is the query encoding used by the REST backend.
type Filter struct {
	Method    FilterMethod `json:"method"`
	Attribute string       `json:"attribute,omitempty"`
	Values    []any        `json:"values,omitempty"`
}

// Equal matches documents whose field equals any of values.
// For array fields a document matches when the array contains any of values.
func Equal(field string, values ...any) Filter {
	return Filter{Method: MethodEqual, Attribute: field, Values: values}
}

// Search matches documents whose string field contains term, case-insensitively.
func Search(field, term string) Filter {
	return Filter{Method: MethodSearch, Attribute: field, Values: []any{term}}
}

// OrderAsc sorts ascending by field. Multiple orders apply in sequence.
func OrderAsc(field string) Filter {
	return Filter{Method: MethodOrderAsc, Attribute: field}
}

// OrderDesc sorts descending by field.
func OrderDesc(field string) Filter {
	return Filter{Method: MethodOrderDesc, Attribute: field}
}

// Limit bounds the number of returned documents.
func Limit(n int) Filter {
	return Filter{Method: MethodLimit, Values: []any{n}}
}

// CursorAfter restricts results to documents strictly after the document with
// the given ID in the requested sort order.
func CursorAfter(id string) Filter {
	return Filter{Method: MethodCursorAfter, Values: []any{id}}
}

// String renders the filter in its wire encoding.
func (f Filter) String() string {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("%s(%s)", f.Method, f.Attribute)
	}
	return string(b)
}

// Order is a parsed ordering clause.
type Order struct {
	Field      string
	Descending bool
}

// Query is the normalized form of a filter list. Backends build their native
// query from it so validation rules are shared.
type Query struct {
	Cursor   string
	Equals   []Filter
	Searches []Filter
	Orders   []Order
	Limit    int
}

// ParseFilters validates filters and folds them into a Query.
// Limit defaults to DefaultLimit; a repeated limit or cursor keeps the last one.
func ParseFilters(filters []Filter) (Query, error) {
	q := Query{Limit: DefaultLimit}
	for _, f := range filters {
		switch f.Method {
		case MethodEqual:
			if f.Attribute == "" || len(f.Values) == 0 {
				return Query{}, fmt.Errorf("%w: equal requires an attribute and at least one value", ErrBadRequest)
			}
			q.Equals = append(q.Equals, f)
		case MethodSearch:
			if f.Attribute == "" || len(f.Values) != 1 {
				return Query{}, fmt.Errorf("%w: search requires an attribute and one term", ErrBadRequest)
			}
			if _, ok := f.Values[0].(string); !ok {
				return Query{}, fmt.Errorf("%w: search term must be a string", ErrBadRequest)
			}
			q.Searches = append(q.Searches, f)
		case MethodOrderAsc, MethodOrderDesc:
			if f.Attribute == "" {
				return Query{}, fmt.Errorf("%w: %s requires an attribute", ErrBadRequest, f.Method)
			}
			q.Orders = append(q.Orders, Order{Field: f.Attribute, Descending: f.Method == MethodOrderDesc})
		case MethodLimit:
			n, ok := intValue(f.Values)
			if !ok || n <= 0 || n > MaxLimit {
				return Query{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrBadRequest, MaxLimit)
			}
			q.Limit = n
		case MethodCursorAfter:
			id, ok := stringValue(f.Values)
			if !ok || id == "" {
				return Query{}, fmt.Errorf("%w: cursorAfter requires a document ID", ErrBadRequest)
			}
			q.Cursor = id
		default:
			return Query{}, fmt.Errorf("%w: unknown filter method %q", ErrBadRequest, f.Method)
		}
	}
	return q, nil
}

func intValue(values []any) (int, bool) {
	if len(values) != 1 {
		return 0, false
	}
	switch n := values[0].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), float64(int(n)) == n
	default:
		return 0, false
	}
}

func stringValue(values []any) (string, bool) {
	if len(values) != 1 {
		return "", false
	}
	s, ok := values[0].(string)
	return s, ok
}
