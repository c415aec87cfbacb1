package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/creators"
	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/querycache"
	"Snapfeed/internal/db/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// recordingStore captures the filters of every list call.
type recordingStore struct {
	*memory.Store
	calls [][]documents.Filter
	mu    sync.Mutex
}

func (r *recordingStore) ListDocuments(ctx context.Context, coll string, filters ...documents.Filter) (*documents.ListResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]documents.Filter(nil), filters...))
	r.mu.Unlock()
	return r.Store.ListDocuments(ctx, coll, filters...)
}

// seedPosts inserts n posts p01..pNN; higher numbers were updated more recently.
func seedPosts(store *memory.Store, n int) {
	for i := 1; i <= n; i++ {
		ts := baseTime.Add(time.Duration(i) * time.Minute)
		store.Insert("posts", &documents.Document{
			ID:        fmt.Sprintf("p%02d", i),
			CreatedAt: ts,
			UpdatedAt: ts,
			Fields: map[string]any{
				"caption": fmt.Sprintf("post %d", i),
				"creator": map[string]any{"$id": "u1", "name": "Ann"},
				"likes":   []any{},
			},
		})
	}
}

func newTestEngine(t *testing.T, n int) (*Engine, *recordingStore) {
	t.Helper()
	store := &recordingStore{Store: memory.NewStore()}
	seedPosts(store.Store, n)
	resolver := creators.NewResolver(store, "users", "", nil)
	projector := posts.NewProjector(resolver, blobs.NewMemoryStore("https://cdn.test"), nil)
	return NewEngine(store, "posts", projector, 10, nil), store
}

func ids(page *Page) []string {
	out := make([]string, len(page.Documents))
	for i, p := range page.Documents {
		out[i] = p.ID
	}
	return out
}

func TestFetchPage_TraversesTwentyFivePosts(t *testing.T) {
	engine, _ := newTestEngine(t, 25)
	ctx := context.Background()

	var (
		sizes   []int
		totals  []int
		seen    = map[string]bool{}
		cursors []string
		cursor  string
	)
	for range 10 {
		page, err := engine.FetchPage(ctx, cursor)
		require.NoError(t, err)
		require.False(t, page.Failed())

		sizes = append(sizes, page.Len())
		totals = append(totals, page.Total)
		for _, id := range ids(page) {
			assert.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
		}

		next, ok := NextCursor(page)
		if !ok {
			break
		}
		cursors = append(cursors, next)
		cursor = next
	}

	assert.Equal(t, []int{10, 10, 5, 0}, sizes)
	assert.Equal(t, []int{25, 15, 5, 0}, totals)
	assert.Len(t, seen, 25)
	assert.Equal(t, []string{"p16", "p06", "p01"}, cursors)
}

func TestFetchPage_PassesOrderingAndLimitEveryCall(t *testing.T) {
	engine, store := newTestEngine(t, 12)
	ctx := context.Background()

	first, err := engine.FetchPage(ctx, "")
	require.NoError(t, err)
	next, ok := NextCursor(first)
	require.True(t, ok)
	_, err = engine.FetchPage(ctx, next)
	require.NoError(t, err)

	require.Len(t, store.calls, 2)
	assert.Equal(t, []documents.Filter{
		documents.OrderDesc(documents.FieldUpdatedAt),
		documents.Limit(10),
	}, store.calls[0])
	assert.Equal(t, []documents.Filter{
		documents.OrderDesc(documents.FieldUpdatedAt),
		documents.Limit(10),
		documents.CursorAfter("p03"),
	}, store.calls[1])
}

func TestFetchPage_RestartReturnsFirstPage(t *testing.T) {
	engine, _ := newTestEngine(t, 25)
	ctx := context.Background()

	first, err := engine.FetchPage(ctx, "")
	require.NoError(t, err)
	next, _ := NextCursor(first)
	_, err = engine.FetchPage(ctx, next)
	require.NoError(t, err)

	again, err := engine.FetchPage(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(again))
	assert.Equal(t, "p25", again.Documents[0].ID)
}

func TestFetchPage_InsertDuringTraversalDoesNotDuplicate(t *testing.T) {
	engine, store := newTestEngine(t, 15)
	ctx := context.Background()

	first, err := engine.FetchPage(ctx, "")
	require.NoError(t, err)
	next, _ := NextCursor(first)

	store.Insert("posts", &documents.Document{
		ID:        "fresh",
		UpdatedAt: baseTime.Add(time.Hour),
		Fields:    map[string]any{"creator": "u1"},
	})

	second, err := engine.FetchPage(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, []string{"p05", "p04", "p03", "p02", "p01"}, ids(second))
}

func TestFetchPage_StoreFailureIsDistinctFromEnd(t *testing.T) {
	engine, store := newTestEngine(t, 5)
	store.SetFailure(func(context.Context, memory.Op, string, string) error {
		return fmt.Errorf("list: %w", documents.ErrUnavailable)
	})

	page, err := engine.FetchPage(context.Background(), "p03")
	require.Error(t, err)
	require.NotNil(t, page)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "p03", fetchErr.Cursor)
	assert.ErrorIs(t, err, documents.ErrUnavailable)
	assert.True(t, page.Failed())
	assert.Empty(t, page.Documents)

	collapsed := Collapse(page, err)
	assert.False(t, collapsed.Failed())
	assert.Equal(t, 0, collapsed.Total)
	assert.NotNil(t, collapsed.Documents)
}

func TestFetchPage_CreatorFailureDoesNotAbortPage(t *testing.T) {
	engine, store := newTestEngine(t, 0)
	store.Insert("posts", &documents.Document{ID: "p1", UpdatedAt: baseTime, Fields: map[string]any{"creator": "ghost"}})

	page, err := engine.FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, creators.Creator{ID: "ghost", Name: "Unknown", ImageURL: creators.DefaultPlaceholder}, page.Documents[0].Creator)
}

func TestNextCursor(t *testing.T) {
	_, ok := NextCursor(nil)
	assert.False(t, ok)

	_, ok = NextCursor(&Page{Documents: []*posts.Post{}})
	assert.False(t, ok)

	cursor, ok := NextCursor(&Page{Documents: []*posts.Post{{ID: "b"}, {ID: "a"}}})
	assert.True(t, ok)
	assert.Equal(t, "a", cursor)
}

func TestPages(t *testing.T) {
	engine, store := newTestEngine(t, 25)
	ctx := context.Background()

	collect := func() []int {
		var sizes []int
		for page, err := range engine.Pages(ctx) {
			require.NoError(t, err)
			sizes = append(sizes, page.Len())
		}
		return sizes
	}

	assert.Equal(t, []int{10, 10, 5, 0}, collect())
	assert.Equal(t, []int{10, 10, 5, 0}, collect(), "each range restarts from the newest posts")
	assert.Len(t, store.calls, 8)
}

func TestPages_StopsEarly(t *testing.T) {
	engine, store := newTestEngine(t, 25)

	for page := range engine.Pages(context.Background()) {
		assert.Equal(t, "p25", page.Documents[0].ID)
		break
	}
	assert.Len(t, store.calls, 1)
}

func TestPages_StopsAfterError(t *testing.T) {
	engine, store := newTestEngine(t, 25)
	store.SetFailure(func(context.Context, memory.Op, string, string) error { return documents.ErrUnavailable })

	var n int
	for page, err := range engine.Pages(context.Background()) {
		n++
		assert.Error(t, err)
		assert.True(t, page.Failed())
	}
	assert.Equal(t, 1, n)
}

func TestTraversal(t *testing.T) {
	engine, store := newTestEngine(t, 25)
	ctx := context.Background()
	tr := engine.Traversal()

	var sizes []int
	for tr.HasNext() {
		page, err := tr.Next(ctx)
		require.NoError(t, err)
		sizes = append(sizes, page.Len())
	}
	assert.Equal(t, []int{10, 10, 5, 0}, sizes)
	assert.Equal(t, "p01", tr.Cursor())

	calls := len(store.calls)
	page, err := tr.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Len())
	assert.Len(t, store.calls, calls, "exhausted traversal makes no store call")

	tr.Reset()
	assert.True(t, tr.HasNext())
	page, err = tr.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p25", page.Documents[0].ID)
}

func TestTraversal_FailureKeepsCursor(t *testing.T) {
	engine, store := newTestEngine(t, 25)
	ctx := context.Background()
	tr := engine.Traversal()

	_, err := tr.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "p16", tr.Cursor())

	store.SetFailure(func(context.Context, memory.Op, string, string) error { return documents.ErrUnavailable })
	_, err = tr.Next(ctx)
	require.Error(t, err)
	assert.Equal(t, "p16", tr.Cursor())
	assert.True(t, tr.HasNext())

	store.SetFailure(nil)
	page, err := tr.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p15", page.Documents[0].ID)
}

func TestCachedPage(t *testing.T) {
	engine, store := newTestEngine(t, 25)
	ctx := context.Background()
	cache := querycache.New(querycache.NewMemoryBackend(), time.Minute, nil)

	first, err := engine.CachedPage(ctx, cache, "")
	require.NoError(t, err)
	again, err := engine.CachedPage(ctx, cache, "")
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(again))
	assert.Len(t, store.calls, 1)

	second, err := engine.CachedPage(ctx, cache, "p16")
	require.NoError(t, err)
	assert.Equal(t, "p15", second.Documents[0].ID)
	assert.Len(t, store.calls, 2)

	cache.Invalidate(ctx, querycache.InfinitePosts())
	_, err = engine.CachedPage(ctx, cache, "")
	require.NoError(t, err)
	assert.Len(t, store.calls, 3)
}

func TestCachedPage_FailureNotCached(t *testing.T) {
	engine, store := newTestEngine(t, 5)
	ctx := context.Background()
	cache := querycache.New(nil, time.Minute, nil)

	store.SetFailure(func(context.Context, memory.Op, string, string) error { return documents.ErrUnavailable })
	page, err := engine.CachedPage(ctx, cache, "")
	require.Error(t, err)
	assert.True(t, page.Failed())

	store.SetFailure(nil)
	page, err = engine.CachedPage(ctx, cache, "")
	require.NoError(t, err)
	assert.Equal(t, 5, page.Len())
}
