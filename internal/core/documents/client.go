package documents

import (
	"context"
	"fmt"
)

// Client provides access to a remote document store.
// Implementations: memory.Store, postgres.DocumentStore and appwrite.Client.
type Client interface {
	// ListDocuments returns the documents of a collection matching filters.
	// An unknown cursor document fails with ErrBadRequest.
	ListDocuments(ctx context.Context, collection string, filters ...Filter) (*ListResult, error)

	// GetDocument retrieves a single document. Returns ErrNotFound when absent.
	GetDocument(ctx context.Context, collection, id string) (*Document, error)

	// CreateDocument stores a new document. If id is empty the store assigns one.
	CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)

	// UpdateDocument replaces the given top-level fields of a document.
	// Array values replace the stored array whole; there is no partial append or remove.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)

	// DeleteDocument removes a document. Returns ErrNotFound when absent.
	DeleteDocument(ctx context.Context, collection, id string) error
}

// ListResult is one page of a ListDocuments call.
// Total counts the matching documents from the cursor onward, ignoring the limit.
type ListResult struct {
	Documents []*Document `json:"documents"`
	Total     int         `json:"total"`
}

// Collections names the collections used by the application.
type Collections struct {
	Posts string
	Users string
	Saves string
}

// DefaultCollections returns the collection IDs used when none are configured.
func DefaultCollections() Collections {
	return Collections{Posts: "posts", Users: "users", Saves: "saves"}
}

// Validate checks that every collection is named.
func (c Collections) Validate() error {
	if c.Posts == "" || c.Users == "" || c.Saves == "" {
		return fmt.Errorf("collections must all be named (posts=%q users=%q saves=%q)", c.Posts, c.Users, c.Saves)
	}
	return nil
}
