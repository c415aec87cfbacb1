package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/metrics"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Field names used in filters must be plain identifiers.
var fieldNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key
const uniqueViolation = "23505"

// DocumentStore is a documents.Client over a single jsonb documents table.
//
// Equal/search/order filters on user fields compile to jsonb operators.
// Ordering ties are broken by insertion order (seq), so pagination with a
// cursor is stable for equal timestamps.
type DocumentStore struct {
	db *sql.DB
}

var _ documents.Client = (*DocumentStore)(nil)

// NewDocumentStore creates a document store on an open database.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// listQuery accumulates a WHERE clause and its positional arguments.
type listQuery struct {
	where []string
	args  []any
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// ListDocuments implements documents.Client.
func (s *DocumentStore) ListDocuments(ctx context.Context, collection string, filters ...documents.Filter) (_ *documents.ListResult, err error) {
	defer observe("list", collection, time.Now(), &err)

	parsed, err := documents.ParseFilters(filters)
	if err != nil {
		return nil, fmt.Errorf("listDocuments: %w", err)
	}

	q := &listQuery{}
	q.where = append(q.where, "d.collection = "+q.arg(collection))
	if err := q.addMatchers("d", parsed); err != nil {
		return nil, err
	}

	orders := make([]orderExpr, 0, len(parsed.Orders))
	for _, o := range parsed.Orders {
		expr, err := q.column("d", o.Field)
		if err != nil {
			return nil, err
		}
		orders = append(orders, orderExpr{expr: expr, field: o.Field, desc: o.Descending})
	}

	if parsed.Cursor != "" {
		if err := s.checkCursor(ctx, collection, parsed); err != nil {
			return nil, err
		}
		cond, err := q.after(orders, parsed.Cursor, collection)
		if err != nil {
			return nil, err
		}
		q.where = append(q.where, cond)
	}

	orderBy := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		dir := "ASC"
		if o.desc {
			dir = "DESC"
		}
		orderBy = append(orderBy, o.expr+" "+dir)
	}
	orderBy = append(orderBy, "d.seq ASC")

	query := `
		SELECT d.id, d.data, d.created_at, d.updated_at, COUNT(*) OVER() AS total
		FROM documents d
		WHERE ` + strings.Join(q.where, " AND ") + `
		ORDER BY ` + strings.Join(orderBy, ", ") + `
		LIMIT ` + q.arg(parsed.Limit)

	rows, err := s.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		return nil, wrapDBError("listDocuments", collection, "", err)
	}
	defer func() { _ = rows.Close() }()

	result := &documents.ListResult{Documents: []*documents.Document{}}
	for rows.Next() {
		doc := &documents.Document{Collection: collection}
		var data []byte
		if err := rows.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt, &result.Total); err != nil {
			return nil, wrapDBError("listDocuments", collection, "", err)
		}
		if err := decodeData(doc, data); err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("listDocuments", collection, "", err)
	}
	return result, nil
}

// checkCursor rejects a cursor that does not exist or is excluded by the
// query's own filters, so a traversal never silently restarts.
func (s *DocumentStore) checkCursor(ctx context.Context, collection string, parsed documents.Query) error {
	q := &listQuery{}
	q.where = append(q.where, "d.collection = "+q.arg(collection), "d.id = "+q.arg(parsed.Cursor))
	if err := q.addMatchers("d", parsed); err != nil {
		return err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM documents d WHERE ` + strings.Join(q.where, " AND ") + `)`
	if err := s.db.QueryRowContext(ctx, query, q.args...).Scan(&exists); err != nil {
		return wrapDBError("listDocuments", collection, parsed.Cursor, err)
	}
	if !exists {
		return fmt.Errorf("listDocuments: %w: cursor document %q not found", documents.ErrBadRequest, parsed.Cursor)
	}
	return nil
}

type orderExpr struct {
	expr  string
	field string
	desc  bool
}

// after builds the strict "positioned after cursor" condition for the given
// ordering: a lexicographic comparison over the order keys and then seq.
func (q *listQuery) after(orders []orderExpr, cursor, collection string) (string, error) {
	cur := "(SELECT c.%s FROM documents c WHERE c.collection = " + q.arg(collection) + " AND c.id = " + q.arg(cursor) + ")"

	var (
		alternatives []string
		equalSoFar   []string
	)
	for _, o := range orders {
		cursorExpr, err := q.column("c", o.field)
		if err != nil {
			return "", err
		}
		cv := fmt.Sprintf(cur, strings.TrimPrefix(cursorExpr, "c."))
		op := ">"
		if o.desc {
			op = "<"
		}
		alternatives = append(alternatives, andAll(append(equalSoFar, o.expr+" "+op+" "+cv)))
		equalSoFar = append(equalSoFar, o.expr+" = "+cv)
	}
	alternatives = append(alternatives, andAll(append(equalSoFar, "d.seq > "+fmt.Sprintf(cur, "seq"))))
	return "(" + strings.Join(alternatives, " OR ") + ")", nil
}

func andAll(conds []string) string {
	return "(" + strings.Join(conds, " AND ") + ")"
}

// addMatchers appends equality and search conditions.
func (q *listQuery) addMatchers(alias string, parsed documents.Query) error {
	for _, f := range parsed.Equals {
		cond, err := q.equal(alias, f)
		if err != nil {
			return err
		}
		q.where = append(q.where, cond)
	}
	for _, f := range parsed.Searches {
		expr, err := q.textColumn(alias, f.Attribute)
		if err != nil {
			return err
		}
		term, _ := f.Values[0].(string)
		q.where = append(q.where, expr+` ILIKE '%' || `+q.arg(likeEscaper.Replace(term))+` || '%'`)
	}
	return nil
}

// equal matches a scalar field, an element of an array field, or the $id of
// an embedded relation.
func (q *listQuery) equal(alias string, f documents.Filter) (string, error) {
	values := make([]string, len(f.Values))
	for i, v := range f.Values {
		values[i] = fmt.Sprint(v)
	}

	if col, ok := systemColumn(f.Attribute); ok {
		return fmt.Sprintf("%s.%s::text = ANY(%s)", alias, col, q.arg(pq.Array(values))), nil
	}
	if !fieldNameRegex.MatchString(f.Attribute) {
		return "", fmt.Errorf("%w: invalid field name %q", documents.ErrBadRequest, f.Attribute)
	}

	key := q.arg(f.Attribute) + "::text"
	vals := q.arg(pq.Array(values))
	field := alias + ".data->" + key
	return "(" +
		alias + ".data->>" + key + " = ANY(" + vals + ")" +
		" OR (jsonb_typeof(" + field + ") = 'array' AND EXISTS (SELECT 1 FROM jsonb_array_elements(" + field + ") e" +
		" WHERE COALESCE(e->>'$id', e #>> '{}') = ANY(" + vals + ")))" +
		" OR (jsonb_typeof(" + field + ") = 'object' AND " + field + "->>'$id' = ANY(" + vals + "))" +
		")", nil
}

// column returns the sort expression for a field.
func (q *listQuery) column(alias, field string) (string, error) {
	if col, ok := systemColumn(field); ok {
		return alias + "." + col, nil
	}
	if !fieldNameRegex.MatchString(field) {
		return "", fmt.Errorf("%w: invalid field name %q", documents.ErrBadRequest, field)
	}
	// Inlined rather than bound so that identical expressions in ORDER BY and
	// the cursor subquery are recognized as the same key by the planner.
	return alias + ".data->'" + field + "'", nil
}

func (q *listQuery) textColumn(alias, field string) (string, error) {
	if col, ok := systemColumn(field); ok {
		return alias + "." + col + "::text", nil
	}
	if !fieldNameRegex.MatchString(field) {
		return "", fmt.Errorf("%w: invalid field name %q", documents.ErrBadRequest, field)
	}
	return alias + ".data->>" + q.arg(field) + "::text", nil
}

func systemColumn(field string) (string, bool) {
	switch field {
	case documents.FieldID:
		return "id", true
	case documents.FieldCreatedAt:
		return "created_at", true
	case documents.FieldUpdatedAt:
		return "updated_at", true
	}
	return "", false
}

// GetDocument implements documents.Client.
func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (_ *documents.Document, err error) {
	defer observe("get", collection, time.Now(), &err)

	doc := &documents.Document{ID: id, Collection: collection}
	var data []byte
	query := `SELECT data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	err = s.db.QueryRowContext(ctx, query, collection, id).Scan(&data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, wrapDBError("getDocument", collection, id, err)
	}
	if err := decodeData(doc, data); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateDocument implements documents.Client. An empty id is replaced by a UUID.
func (s *DocumentStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (_ *documents.Document, err error) {
	defer observe("create", collection, time.Now(), &err)

	if err := documents.ValidateFields(fields); err != nil {
		return nil, fmt.Errorf("createDocument: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	data, err := encodeData(fields)
	if err != nil {
		return nil, err
	}

	doc := &documents.Document{ID: id, Collection: collection, Fields: documents.CloneFields(fields)}
	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING created_at, updated_at`
	err = s.db.QueryRowContext(ctx, query, collection, id, data).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, wrapDBError("createDocument", collection, id, err)
	}
	doc.CreatedAt, doc.UpdatedAt = doc.CreatedAt.UTC(), doc.UpdatedAt.UTC()
	return doc, nil
}

// UpdateDocument implements documents.Client. Top-level fields are replaced
// whole; arrays are never merged.
func (s *DocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (_ *documents.Document, err error) {
	defer observe("update", collection, time.Now(), &err)

	if err := documents.ValidateFields(fields); err != nil {
		return nil, fmt.Errorf("updateDocument: %w", err)
	}
	patch, err := encodeData(fields)
	if err != nil {
		return nil, err
	}

	doc := &documents.Document{ID: id, Collection: collection}
	var data []byte
	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = clock_timestamp()
		WHERE collection = $1 AND id = $2
		RETURNING data, created_at, updated_at`
	err = s.db.QueryRowContext(ctx, query, collection, id, patch).Scan(&data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, wrapDBError("updateDocument", collection, id, err)
	}
	if err := decodeData(doc, data); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument implements documents.Client.
func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) (err error) {
	defer observe("delete", collection, time.Now(), &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return wrapDBError("deleteDocument", collection, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrapDBError("deleteDocument", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("deleteDocument %s/%s: %w", collection, id, documents.ErrNotFound)
	}
	return nil
}

func encodeData(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: fields not encodable: %v", documents.ErrBadRequest, err)
	}
	return data, nil
}

func decodeData(doc *documents.Document, data []byte) error {
	doc.Fields = map[string]any{}
	if err := json.Unmarshal(data, &doc.Fields); err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", doc.Collection, doc.ID, err)
	}
	doc.CreatedAt, doc.UpdatedAt = doc.CreatedAt.UTC(), doc.UpdatedAt.UTC()
	return nil
}

// wrapDBError maps database errors onto the documents error taxonomy.
func wrapDBError(op, collection, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, documents.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, documents.ErrConflict)
	}
	return fmt.Errorf("%s %s/%s: %w: %v", op, collection, id, documents.ErrUnavailable, err)
}

func observe(op, collection string, start time.Time, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
	}
	metrics.StoreRequestLatency.WithLabelValues(op, collection, status).Observe(time.Since(start).Seconds())
}
