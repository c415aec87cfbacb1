// Package feed pages through posts ordered by last update, newest first.
//
// The cursor is the ID of the last post of the previous page. Ordering and
// the strict cursor-after position are delegated to the document store; the
// engine only threads the cursor and decides when the sequence ends.
package feed

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/querycache"
	"Snapfeed/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPageSize is the number of posts per page when none is configured.
const DefaultPageSize = 10

// Page is one page of the feed. Total is the store's pass-through count.
type Page struct {
	failure   *FetchError
	Documents []*posts.Post `json:"documents"`
	After     string        `json:"after,omitempty"`
	Total     int           `json:"total"`
}

// Failed reports whether the page is the empty result of a failed fetch rather
// than the end of the feed.
func (p *Page) Failed() bool {
	return p != nil && p.failure != nil
}

// Len returns the number of posts on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Documents)
}

// FetchError reports a page fetch that failed at the store.
type FetchError struct {
	Err    error
	Cursor string
}

func (e *FetchError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("fetch first feed page: %v", e.Err)
	}
	return fmt.Sprintf("fetch feed page after %s: %v", e.Cursor, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Engine fetches feed pages from the posts collection.
type Engine struct {
	store      documents.Client
	projector  *posts.Projector
	logger     *slog.Logger
	tracer     trace.Tracer
	collection string
	pageSize   int
}

// NewEngine creates an engine. A non-positive pageSize selects DefaultPageSize.
func NewEngine(store documents.Client, collection string, projector *posts.Projector, pageSize int, logger *slog.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		collection: collection,
		projector:  projector,
		pageSize:   pageSize,
		logger:     logger,
		tracer:     otel.Tracer("Snapfeed/internal/core/feed"),
	}
}

// PageSize returns the fixed page size.
func (e *Engine) PageSize() int { return e.pageSize }

// FetchPage fetches the page after cursor, or the first page when cursor is empty.
//
// A store failure yields an empty, non-nil page together with a *FetchError;
// the page reports Failed. Creator and image resolution failures never fail a page.
func (e *Engine) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	ctx, span := e.tracer.Start(ctx, "feed.FetchPage", trace.WithAttributes(
		attribute.String("feed.cursor", cursor),
		attribute.Int("feed.page_size", e.pageSize),
	))
	defer span.End()

	filters := []documents.Filter{
		documents.OrderDesc(documents.FieldUpdatedAt),
		documents.Limit(e.pageSize),
	}
	if cursor != "" {
		filters = append(filters, documents.CursorAfter(cursor))
	}

	res, err := e.store.ListDocuments(ctx, e.collection, filters...)
	if err != nil {
		fetchErr := &FetchError{Cursor: cursor, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed page fetch failed")
		metrics.FeedPages.WithLabelValues(metrics.OutcomeError).Inc()
		e.logger.Warn("feed page fetch failed",
			"cursor", cursor,
			"transport", documents.IsTransportFailure(err),
			"error", err)
		return &Page{Documents: []*posts.Post{}, After: cursor, failure: fetchErr}, fetchErr
	}

	page := &Page{
		Documents: e.projector.ProjectAll(ctx, res.Documents),
		After:     cursor,
		Total:     res.Total,
	}
	span.SetAttributes(
		attribute.Int("feed.documents", len(page.Documents)),
		attribute.Int("feed.total", page.Total),
	)
	metrics.FeedPages.WithLabelValues(metrics.OutcomeOK).Inc()
	return page, nil
}

// NextCursor returns the ID of the last post on page, in page order.
// An empty page has no next cursor and ends the feed.
func NextCursor(page *Page) (string, bool) {
	if page.Len() == 0 {
		return "", false
	}
	return page.Documents[len(page.Documents)-1].ID, true
}

// Collapse reduces a FetchPage result to a plain page for display: a failed
// fetch becomes an empty page.
func Collapse(page *Page, err error) *Page {
	if err != nil || page == nil {
		return &Page{Documents: []*posts.Post{}}
	}
	return page
}

// Pages returns the feed as a lazy sequence starting from the newest posts.
// The terminating empty page is yielded; a fetch error is yielded with its
// empty page and ends the sequence. Each range over the sequence restarts it.
func (e *Engine) Pages(ctx context.Context) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		cursor := ""
		for {
			page, err := e.FetchPage(ctx, cursor)
			if !yield(page, err) || err != nil {
				return
			}
			next, ok := NextCursor(page)
			if !ok {
				return
			}
			cursor = next
		}
	}
}

// CachedPage reads a page through the query cache under infinitePosts(cursor).
// Failed fetches are returned but never cached.
func (e *Engine) CachedPage(ctx context.Context, cache *querycache.Cache, cursor string) (*Page, error) {
	var failed *Page
	page, err := querycache.Fetch(ctx, cache, querycache.InfinitePosts(cursor), func(ctx context.Context) (*Page, error) {
		p, err := e.FetchPage(ctx, cursor)
		if err != nil {
			failed = p
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		if failed == nil {
			failed = &Page{Documents: []*posts.Post{}, After: cursor, failure: &FetchError{Cursor: cursor, Err: err}}
		}
		return failed, err
	}
	return page, nil
}
