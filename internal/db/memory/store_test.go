package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"Snapfeed/internal/core/documents"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func seedPosts(t *testing.T, s *Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		doc, err := s.CreateDocument(context.Background(), "posts", fmt.Sprintf("p%02d", i), map[string]any{
			"caption": fmt.Sprintf("post %d", i),
		})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}
	return ids
}

func TestStore_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	created, err := s.CreateDocument(ctx, "posts", "", map[string]any{"caption": "hi", "likes": []any{"u1"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "store assigns an ID when none is given")
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.GetDocument(ctx, "posts", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.String("caption"))

	updated, err := s.UpdateDocument(ctx, "posts", created.ID, map[string]any{"likes": []any{"u2", "u3"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, updated.StringSlice("likes"), "arrays are replaced whole")
	assert.Equal(t, "hi", updated.String("caption"), "untouched fields survive")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	require.NoError(t, s.DeleteDocument(ctx, "posts", created.ID))
	_, err = s.GetDocument(ctx, "posts", created.ID)
	assert.ErrorIs(t, err, documents.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "posts", created.ID), documents.ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.CreateDocument(ctx, "posts", "p1", map[string]any{"likes": []any{"u1"}})
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "posts", "p1")
	require.NoError(t, err)
	got.Fields["likes"].([]any)[0] = "mutated"

	again, err := s.GetDocument(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, again.StringSlice("likes"))
}

func TestStore_CreateConflictAndReservedFields(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.CreateDocument(ctx, "users", "u1", map[string]any{"name": "A"})
	require.NoError(t, err)

	_, err = s.CreateDocument(ctx, "users", "u1", map[string]any{"name": "B"})
	assert.ErrorIs(t, err, documents.ErrConflict)

	_, err = s.CreateDocument(ctx, "users", "u2", map[string]any{"$id": "x"})
	assert.ErrorIs(t, err, documents.ErrBadRequest)
}

func TestStore_ListCursorTraversal(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	seedPosts(t, s, 25)

	var (
		cursor string
		sizes  []int
		totals []int
		seen   []string
	)
	for {
		filters := []documents.Filter{documents.OrderDesc(documents.FieldUpdatedAt), documents.Limit(10)}
		if cursor != "" {
			filters = append(filters, documents.CursorAfter(cursor))
		}
		res, err := s.ListDocuments(ctx, "posts", filters...)
		require.NoError(t, err)
		sizes = append(sizes, len(res.Documents))
		totals = append(totals, res.Total)
		if len(res.Documents) == 0 {
			break
		}
		for _, d := range res.Documents {
			seen = append(seen, d.ID)
		}
		cursor = res.Documents[len(res.Documents)-1].ID
	}

	assert.Equal(t, []int{10, 10, 5, 0}, sizes)
	assert.Equal(t, []int{25, 15, 5, 0}, totals)
	require.Len(t, seen, 25)
	assert.Equal(t, "p25", seen[0], "newest first")
	assert.Equal(t, "p01", seen[24])
	assert.Equal(t, "p01", cursor)
}

func TestStore_ListStableForEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })
	seedPosts(t, s, 5)

	first, err := s.ListDocuments(ctx, "posts", documents.OrderDesc(documents.FieldUpdatedAt), documents.Limit(2))
	require.NoError(t, err)
	second, err := s.ListDocuments(ctx, "posts",
		documents.OrderDesc(documents.FieldUpdatedAt), documents.Limit(2), documents.CursorAfter(first.Documents[1].ID))
	require.NoError(t, err)

	assert.Equal(t, "p01", first.Documents[0].ID)
	assert.Equal(t, "p02", first.Documents[1].ID)
	assert.Equal(t, "p03", second.Documents[0].ID)
}

func TestStore_ListUnknownCursor(t *testing.T) {
	s := NewStore()
	seedPosts(t, s, 3)

	_, err := s.ListDocuments(context.Background(), "posts", documents.CursorAfter("gone"))
	assert.ErrorIs(t, err, documents.ErrBadRequest)
}

func TestStore_ListEqualAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, _ = s.CreateDocument(ctx, "saves", "s1", map[string]any{"user": "u1", "post": "p1"})
	_, _ = s.CreateDocument(ctx, "saves", "s2", map[string]any{"user": "u2", "post": "p1"})
	_, _ = s.CreateDocument(ctx, "saves", "s3", map[string]any{"user": map[string]any{"$id": "u1"}, "post": "p2"})
	_, _ = s.CreateDocument(ctx, "posts", "p1", map[string]any{"caption": "Sunset at the Beach"})
	_, _ = s.CreateDocument(ctx, "posts", "p2", map[string]any{"caption": "city lights"})

	res, err := s.ListDocuments(ctx, "saves", documents.Equal("user", "u1"))
	require.NoError(t, err)
	assert.Len(t, res.Documents, 2, "embedded relation matches by $id")

	res, err = s.ListDocuments(ctx, "posts", documents.Search("caption", "beach"))
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "p1", res.Documents[0].ID)

	res, err = s.ListDocuments(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestStore_FailureInjectionAndCounters(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedPosts(t, s, 2)
	s.ResetCalls()

	boom := errors.New("boom")
	s.SetFailure(func(_ context.Context, op Op, coll, id string) error {
		if op == OpGet && id == "p01" {
			return fmt.Errorf("%w: %v", documents.ErrUnavailable, boom)
		}
		return nil
	})

	_, err := s.GetDocument(ctx, "posts", "p01")
	assert.ErrorIs(t, err, documents.ErrUnavailable)
	_, err = s.GetDocument(ctx, "posts", "p02")
	assert.NoError(t, err)

	assert.Equal(t, 2, s.Calls(OpGet, "posts"))
	assert.Equal(t, 0, s.Calls(OpList, "posts"))

	s.SetFailure(nil)
	_, err = s.GetDocument(ctx, "posts", "p01")
	assert.NoError(t, err)
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListDocuments(ctx, "posts")
	assert.ErrorIs(t, err, documents.ErrUnavailable)
}
