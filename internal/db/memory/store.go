// Package memory provides an in-process document store. It is the default
// development backend and the store test double used across the core packages:
// it counts calls per operation and collection and supports fault injection.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"Snapfeed/internal/core/documents"

	"github.com/google/uuid"
)

// Op names a store operation for call counting and fault injection.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// FailureFunc is consulted before every operation. A non-nil error fails the
// call without touching stored data. It runs outside the store lock, so it may block.
type FailureFunc func(ctx context.Context, op Op, collection, id string) error

type callKey struct {
	op         Op
	collection string
}

type collection struct {
	byID  map[string]*documents.Document
	order []string // insertion order, used as the stable tie-breaker
}

// Store is a thread-safe in-memory implementation of documents.Client.
type Store struct {
	now         func() time.Time
	failure     FailureFunc
	collections map[string]*collection
	calls       map[callKey]int
	mu          sync.RWMutex
	callsMu     sync.Mutex
}

var _ documents.Client = (*Store)(nil)

// NewStore creates an empty store using the wall clock.
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		collections: make(map[string]*collection),
		calls:       make(map[callKey]int),
	}
}

// SetClock replaces the clock used for CreatedAt/UpdatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetFailure installs (or clears, with nil) the fault injection hook.
func (s *Store) SetFailure(fn FailureFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = fn
}

// Calls returns how many times op was invoked on collection, including failed calls.
func (s *Store) Calls(op Op, coll string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[callKey{op: op, collection: coll}]
}

// ResetCalls zeroes all call counters.
func (s *Store) ResetCalls() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.calls = make(map[callKey]int)
}

// Insert stores a document verbatim, keeping its ID and timestamps.
// Used for seeding fixtures; it bypasses counters and fault injection.
func (s *Store) Insert(coll string, doc *documents.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := doc.Clone()
	cp.Collection = coll
	if cp.Fields == nil {
		cp.Fields = map[string]any{}
	}
	c := s.collectionLocked(coll)
	if _, exists := c.byID[cp.ID]; !exists {
		c.order = append(c.order, cp.ID)
	}
	c.byID[cp.ID] = cp
}

// Len returns the number of documents in a collection.
func (s *Store) Len(coll string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[coll]; ok {
		return len(c.order)
	}
	return 0
}

func (s *Store) before(ctx context.Context, op Op, coll, id string) error {
	s.callsMu.Lock()
	s.calls[callKey{op: op, collection: coll}]++
	s.callsMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s %s: %w: %v", op, coll, documents.ErrUnavailable, err)
	}

	s.mu.RLock()
	failure := s.failure
	s.mu.RUnlock()
	if failure == nil {
		return nil
	}
	return failure(ctx, op, coll, id)
}

func (s *Store) collectionLocked(coll string) *collection {
	c, ok := s.collections[coll]
	if !ok {
		c = &collection{byID: make(map[string]*documents.Document)}
		s.collections[coll] = c
	}
	return c
}

// ListDocuments implements documents.Client.
func (s *Store) ListDocuments(ctx context.Context, coll string, filters ...documents.Filter) (*documents.ListResult, error) {
	if err := s.before(ctx, OpList, coll, ""); err != nil {
		return nil, err
	}

	q, err := documents.ParseFilters(filters)
	if err != nil {
		return nil, fmt.Errorf("listDocuments: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll]
	if !ok {
		return &documents.ListResult{Documents: []*documents.Document{}}, nil
	}

	matched := make([]*documents.Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.byID[id]
		if matches(doc, q) {
			matched = append(matched, doc)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i], matched[j], q.Orders)
		})
	}

	if q.Cursor != "" {
		if _, exists := c.byID[q.Cursor]; !exists {
			return nil, fmt.Errorf("listDocuments: %w: cursor document %q not found", documents.ErrBadRequest, q.Cursor)
		}
		pos := -1
		for i, doc := range matched {
			if doc.ID == q.Cursor {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("listDocuments: %w: cursor document %q does not match the query", documents.ErrBadRequest, q.Cursor)
		}
		matched = matched[pos+1:]
	}

	total := len(matched)
	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*documents.Document, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	return &documents.ListResult{Documents: out, Total: total}, nil
}

// GetDocument implements documents.Client.
func (s *Store) GetDocument(ctx context.Context, coll, id string) (*documents.Document, error) {
	if err := s.before(ctx, OpGet, coll, id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll]
	if !ok {
		return nil, fmt.Errorf("getDocument %s/%s: %w", coll, id, documents.ErrNotFound)
	}
	doc, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("getDocument %s/%s: %w", coll, id, documents.ErrNotFound)
	}
	return doc.Clone(), nil
}

// CreateDocument implements documents.Client.
func (s *Store) CreateDocument(ctx context.Context, coll, id string, fields map[string]any) (*documents.Document, error) {
	if err := s.before(ctx, OpCreate, coll, id); err != nil {
		return nil, err
	}
	if err := documents.ValidateFields(fields); err != nil {
		return nil, fmt.Errorf("createDocument: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	c := s.collectionLocked(coll)
	if _, exists := c.byID[id]; exists {
		return nil, fmt.Errorf("createDocument %s/%s: %w", coll, id, documents.ErrConflict)
	}

	now := s.now().UTC()
	doc := &documents.Document{
		ID:         id,
		Collection: coll,
		CreatedAt:  now,
		UpdatedAt:  now,
		Fields:     documents.CloneFields(fields),
	}
	c.byID[id] = doc
	c.order = append(c.order, id)
	return doc.Clone(), nil
}

// UpdateDocument implements documents.Client.
func (s *Store) UpdateDocument(ctx context.Context, coll, id string, fields map[string]any) (*documents.Document, error) {
	if err := s.before(ctx, OpUpdate, coll, id); err != nil {
		return nil, err
	}
	if err := documents.ValidateFields(fields); err != nil {
		return nil, fmt.Errorf("updateDocument: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[coll]
	if !ok {
		return nil, fmt.Errorf("updateDocument %s/%s: %w", coll, id, documents.ErrNotFound)
	}
	doc, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("updateDocument %s/%s: %w", coll, id, documents.ErrNotFound)
	}

	for k, v := range documents.CloneFields(fields) {
		doc.Fields[k] = v
	}
	doc.UpdatedAt = s.now().UTC()
	return doc.Clone(), nil
}

// DeleteDocument implements documents.Client.
func (s *Store) DeleteDocument(ctx context.Context, coll, id string) error {
	if err := s.before(ctx, OpDelete, coll, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[coll]
	if !ok {
		return fmt.Errorf("deleteDocument %s/%s: %w", coll, id, documents.ErrNotFound)
	}
	if _, ok := c.byID[id]; !ok {
		return fmt.Errorf("deleteDocument %s/%s: %w", coll, id, documents.ErrNotFound)
	}
	delete(c.byID, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func matches(doc *documents.Document, q documents.Query) bool {
	for _, f := range q.Equals {
		v, ok := doc.Get(f.Attribute)
		if !ok || !equalsAny(v, f.Values) {
			return false
		}
	}
	for _, f := range q.Searches {
		term, _ := f.Values[0].(string)
		s, ok := fieldString(doc, f.Attribute)
		if !ok || !strings.Contains(strings.ToLower(s), strings.ToLower(term)) {
			return false
		}
	}
	return true
}

func fieldString(doc *documents.Document, field string) (string, bool) {
	v, ok := doc.Get(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// equalsAny matches scalars directly and relation arrays by element.
func equalsAny(v any, values []any) bool {
	switch arr := v.(type) {
	case []any:
		for _, item := range arr {
			if equalsAny(item, values) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range arr {
			if equalsAny(item, values) {
				return true
			}
		}
		return false
	case map[string]any:
		return equalsAny(documents.RefID(arr), values)
	}
	for _, want := range values {
		if compare(v, want) == 0 {
			return true
		}
	}
	return false
}

func less(a, b *documents.Document, orders []documents.Order) bool {
	for _, o := range orders {
		av, _ := a.Get(o.Field)
		bv, _ := b.Get(o.Field)
		c := compare(av, bv)
		if c == 0 {
			continue
		}
		if o.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}

// compare orders nil first, then numbers, strings, booleans and times by value.
// Values of different kinds compare by kind rank.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case nil:
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case time.Time:
		return av.Compare(b.(time.Time))
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int, int32, int64, float32, float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	case time.Time:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
