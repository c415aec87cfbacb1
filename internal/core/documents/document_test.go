package documents

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Accessors(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := &Document{
		ID:        "p1",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		Fields: map[string]any{
			"caption":  "sunset",
			"location": nil,
			"tags":     []any{"a", 3, "b", nil},
			"likes":    []any{"u1", map[string]any{"$id": "u2", "name": "Bob"}, 7},
			"count":    4,
		},
	}

	t.Run("system fields resolve", func(t *testing.T) {
		v, ok := doc.Get(FieldID)
		assert.True(t, ok)
		assert.Equal(t, "p1", v)
		v, _ = doc.Get(FieldUpdatedAt)
		assert.Equal(t, created.Add(time.Hour), v)
	})

	t.Run("string defaults to empty", func(t *testing.T) {
		assert.Equal(t, "sunset", doc.String("caption"))
		assert.Equal(t, "", doc.String("missing"))
		assert.Equal(t, "", doc.String("count"))
	})

	t.Run("string pointer is nil for null and absent", func(t *testing.T) {
		assert.Nil(t, doc.StringPtr("location"))
		assert.Nil(t, doc.StringPtr("missing"))
		require.NotNil(t, doc.StringPtr("caption"))
		assert.Equal(t, "sunset", *doc.StringPtr("caption"))
	})

	t.Run("string slice drops non-strings", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, doc.StringSlice("tags"))
		assert.Equal(t, []string{}, doc.StringSlice("caption"))
		assert.Equal(t, []string{}, doc.StringSlice("missing"))
	})

	t.Run("relation IDs accept ids and embedded objects", func(t *testing.T) {
		assert.Equal(t, []string{"u1", "u2"}, doc.RefIDs("likes"))
	})
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := &Document{ID: "p1", Fields: map[string]any{"likes": []any{"u1"}, "meta": map[string]any{"k": "v"}}}
	cp := doc.Clone()

	cp.Fields["likes"].([]any)[0] = "changed"
	cp.Fields["meta"].(map[string]any)["k"] = "changed"
	cp.Fields["new"] = true

	assert.Equal(t, "u1", doc.Fields["likes"].([]any)[0])
	assert.Equal(t, "v", doc.Fields["meta"].(map[string]any)["k"])
	_, exists := doc.Fields["new"]
	assert.False(t, exists)
}

func TestValidateFields(t *testing.T) {
	assert.NoError(t, ValidateFields(map[string]any{"caption": "x"}))
	assert.ErrorIs(t, ValidateFields(map[string]any{"$id": "x"}), ErrBadRequest)
	assert.ErrorIs(t, ValidateFields(map[string]any{"": "x"}), ErrBadRequest)
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters []Filter
		want    Query
		wantErr bool
	}{
		{
			name: "defaults",
			want: Query{Limit: DefaultLimit},
		},
		{
			name:    "feed page query",
			filters: []Filter{OrderDesc(FieldUpdatedAt), Limit(10), CursorAfter("p9")},
			want: Query{
				Limit:  10,
				Cursor: "p9",
				Orders: []Order{{Field: FieldUpdatedAt, Descending: true}},
			},
		},
		{
			name:    "equal and search",
			filters: []Filter{Equal("accountId", "a1"), Search("caption", "beach")},
			want: Query{
				Limit:    DefaultLimit,
				Equals:   []Filter{Equal("accountId", "a1")},
				Searches: []Filter{Search("caption", "beach")},
			},
		},
		{
			name:    "float limit from JSON",
			filters: []Filter{{Method: MethodLimit, Values: []any{float64(5)}}},
			want:    Query{Limit: 5},
		},
		{name: "zero limit", filters: []Filter{Limit(0)}, wantErr: true},
		{name: "limit above max", filters: []Filter{Limit(MaxLimit + 1)}, wantErr: true},
		{name: "empty cursor", filters: []Filter{CursorAfter("")}, wantErr: true},
		{name: "equal without values", filters: []Filter{Equal("user")}, wantErr: true},
		{name: "order without field", filters: []Filter{OrderAsc("")}, wantErr: true},
		{name: "unknown method", filters: []Filter{{Method: "between"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilters(tt.filters)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_String(t *testing.T) {
	assert.Equal(t, `{"method":"orderDesc","attribute":"$updatedAt"}`, OrderDesc(FieldUpdatedAt).String())
	assert.Equal(t, `{"method":"cursorAfter","values":["p1"]}`, CursorAfter("p1").String())
	assert.Equal(t, `{"method":"equal","attribute":"user","values":["u1"]}`, Equal("user", "u1").String())
}

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("getDocument: %w", ErrNotFound)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsTransportFailure(wrapped))

	assert.True(t, IsTransportFailure(fmt.Errorf("list: %w", ErrUnavailable)))
	assert.True(t, IsTransportFailure(ErrRateLimited))
	assert.True(t, IsAuthError(fmt.Errorf("x: %w", ErrForbidden)))
	assert.False(t, IsAuthError(errors.New("other")))
}

func TestCollections_Validate(t *testing.T) {
	assert.NoError(t, DefaultCollections().Validate())
	assert.Error(t, Collections{Posts: "posts"}.Validate())
}
