package appwrite

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"Snapfeed/internal/core/documents"

	"resty.dev/v3"
)

const (
	documentsPath = "/databases/{databaseId}/collections/{collectionId}/documents"
	documentPath  = "/databases/{databaseId}/collections/{collectionId}/documents/{documentId}"

	// uniqueID asks the server to generate a document ID.
	uniqueID = "unique()"
)

// Client implements documents.Client using the Appwrite databases API.
type Client struct {
	http       *resty.Client
	databaseID string
}

var _ documents.Client = (*Client)(nil)

// NewClient creates a databases API client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		http:       newRestyClient(cfg),
		databaseID: cfg.DatabaseID,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) r(ctx context.Context, collection string) *resty.Request {
	return c.http.R().
		WithContext(ctx).
		SetPathParam("databaseId", c.databaseID).
		SetPathParam("collectionId", collection).
		SetError(&apiError{})
}

type listResponse struct {
	Documents []map[string]any `json:"documents"`
	Total     int              `json:"total"`
}

// ListDocuments implements documents.Client.
func (c *Client) ListDocuments(ctx context.Context, collection string, filters ...documents.Filter) (*documents.ListResult, error) {
	if _, err := documents.ParseFilters(filters); err != nil {
		return nil, fmt.Errorf("listDocuments: %w", err)
	}

	queries := make([]string, 0, len(filters))
	for _, f := range filters {
		queries = append(queries, f.String())
	}

	res, err := c.r(ctx, collection).
		SetQueryParamsFromValues(url.Values{"queries[]": queries}).
		SetResult(&listResponse{}).
		Get(documentsPath)
	if err := wrapAPIError(res, err, "listDocuments"); err != nil {
		return nil, err
	}

	body := res.Result().(*listResponse)
	out := &documents.ListResult{
		Documents: make([]*documents.Document, 0, len(body.Documents)),
		Total:     body.Total,
	}
	for _, raw := range body.Documents {
		doc, err := decodeDocument(collection, raw)
		if err != nil {
			return nil, fmt.Errorf("listDocuments: %w", err)
		}
		out.Documents = append(out.Documents, doc)
	}
	return out, nil
}

// GetDocument implements documents.Client.
func (c *Client) GetDocument(ctx context.Context, collection, id string) (*documents.Document, error) {
	var raw map[string]any
	res, err := c.r(ctx, collection).
		SetPathParam("documentId", id).
		SetResult(&raw).
		Get(documentPath)
	if err := wrapAPIError(res, err, "getDocument"); err != nil {
		return nil, err
	}
	return decodeDocument(collection, raw)
}

// CreateDocument implements documents.Client.
func (c *Client) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (*documents.Document, error) {
	if err := documents.ValidateFields(fields); err != nil {
		return nil, fmt.Errorf("createDocument: %w", err)
	}
	if id == "" {
		id = uniqueID
	}

	var raw map[string]any
	res, err := c.r(ctx, collection).
		SetBody(map[string]any{"documentId": id, "data": fields}).
		SetResult(&raw).
		Post(documentsPath)
	if err := wrapAPIError(res, err, "createDocument"); err != nil {
		return nil, err
	}
	return decodeDocument(collection, raw)
}

// UpdateDocument implements documents.Client.
func (c *Client) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (*documents.Document, error) {
	if err := documents.ValidateFields(fields); err != nil {
		return nil, fmt.Errorf("updateDocument: %w", err)
	}

	var raw map[string]any
	res, err := c.r(ctx, collection).
		SetPathParam("documentId", id).
		SetBody(map[string]any{"data": fields}).
		SetResult(&raw).
		Patch(documentPath)
	if err := wrapAPIError(res, err, "updateDocument"); err != nil {
		return nil, err
	}
	return decodeDocument(collection, raw)
}

// DeleteDocument implements documents.Client.
func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	res, err := c.r(ctx, collection).
		SetPathParam("documentId", id).
		Delete(documentPath)
	return wrapAPIError(res, err, "deleteDocument")
}

// decodeDocument splits an Appwrite document into system attributes and user fields.
// Other "$"-prefixed attributes ($permissions, $databaseId) are dropped.
func decodeDocument(collection string, raw map[string]any) (*documents.Document, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document body", documents.ErrUnavailable)
	}
	id, _ := raw[documents.FieldID].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: document without $id", documents.ErrUnavailable)
	}

	doc := &documents.Document{
		ID:         id,
		Collection: collection,
		Fields:     make(map[string]any, len(raw)),
	}
	var err error
	if doc.CreatedAt, err = parseTime(raw[documents.FieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	if doc.UpdatedAt, err = parseTime(raw[documents.FieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}

	for k, v := range raw {
		if strings.HasPrefix(k, "$") {
			continue
		}
		doc.Fields[k] = v
	}
	return doc, nil
}

func parseTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
