package appwrite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/documents"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{
		Endpoint:   server.URL + "/v1",
		ProjectID:  "proj",
		APIKey:     "secret",
		DatabaseID: "db",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Endpoint: "not a url", ProjectID: "p", DatabaseID: "d"}.Validate())
	assert.Error(t, Config{Endpoint: "https://x/v1", DatabaseID: "d"}.Validate())
	assert.NoError(t, Config{Endpoint: "https://x/v1", ProjectID: "p", DatabaseID: "d"}.Validate())
}

func TestClient_ListDocuments(t *testing.T) {
	var gotQueries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/databases/db/collections/posts/documents", r.URL.Path)
		assert.Equal(t, "proj", r.Header.Get("X-Appwrite-Project"))
		assert.Equal(t, "secret", r.Header.Get("X-Appwrite-Key"))
		gotQueries = r.URL.Query()["queries[]"]

		writeJSON(t, w, http.StatusOK, map[string]any{
			"total": 15,
			"documents": []map[string]any{
				{
					"$id":          "p1",
					"$createdAt":   "2024-03-01T10:00:00.000+00:00",
					"$updatedAt":   "2024-03-02T10:00:00.000+00:00",
					"$permissions": []string{},
					"caption":      "hello",
					"likes":        []any{"u1"},
					"creator":      map[string]any{"$id": "u9", "name": "Nine"},
				},
			},
		})
	})

	res, err := c.ListDocuments(context.Background(), "posts",
		documents.OrderDesc(documents.FieldUpdatedAt), documents.Limit(10), documents.CursorAfter("p0"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		`{"method":"orderDesc","attribute":"$updatedAt"}`,
		`{"method":"limit","values":[10]}`,
		`{"method":"cursorAfter","values":["p0"]}`,
	}, gotQueries)

	assert.Equal(t, 15, res.Total)
	require.Len(t, res.Documents, 1)
	doc := res.Documents[0]
	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "posts", doc.Collection)
	assert.Equal(t, 2024, doc.UpdatedAt.Year())
	assert.Equal(t, "hello", doc.String("caption"))
	assert.NotContains(t, doc.Fields, "$permissions")
	assert.Equal(t, "u9", documents.RefID(doc.Fields["creator"]))
}

func TestClient_ListDocumentsRejectsInvalidFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.ListDocuments(context.Background(), "posts", documents.Limit(0))
	assert.ErrorIs(t, err, documents.ErrBadRequest)
}

func TestClient_CreateUpdateDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/v1/databases/db/collections/saves/documents", r.URL.Path)
			var body struct {
				DocumentID string         `json:"documentId"`
				Data       map[string]any `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "unique()", body.DocumentID)
			assert.Equal(t, "u1", body.Data["user"])
			writeJSON(t, w, http.StatusCreated, map[string]any{
				"$id": "s1", "$createdAt": "2024-03-01T10:00:00Z", "$updatedAt": "2024-03-01T10:00:00Z",
				"user": "u1", "post": "p1",
			})
		case http.MethodPatch:
			assert.Equal(t, "/v1/databases/db/collections/posts/documents/p1", r.URL.Path)
			var body struct {
				Data map[string]any `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []any{"u2", "u3", "u1"}, body.Data["likes"])
			writeJSON(t, w, http.StatusOK, map[string]any{
				"$id": "p1", "$createdAt": "2024-03-01T10:00:00Z", "$updatedAt": "2024-03-03T10:00:00Z",
				"likes": body.Data["likes"],
			})
		case http.MethodDelete:
			assert.Equal(t, "/v1/databases/db/collections/saves/documents/s1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})
	ctx := context.Background()

	created, err := c.CreateDocument(ctx, "saves", "", map[string]any{"user": "u1", "post": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", created.ID)

	updated, err := c.UpdateDocument(ctx, "posts", "p1", map[string]any{"likes": []string{"u2", "u3", "u1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3", "u1"}, updated.StringSlice("likes"))

	require.NoError(t, c.DeleteDocument(ctx, "saves", "s1"))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"not found", http.StatusNotFound, documents.ErrNotFound},
		{"bad request", http.StatusBadRequest, documents.ErrBadRequest},
		{"unauthorized", http.StatusUnauthorized, documents.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, documents.ErrForbidden},
		{"conflict", http.StatusConflict, documents.ErrConflict},
		{"rate limited", http.StatusTooManyRequests, documents.ErrRateLimited},
		{"server error", http.StatusInternalServerError, documents.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, map[string]any{
					"message": "Document with the requested ID could not be found.",
					"code":    tt.status,
					"type":    "document_not_found",
				})
			})
			_, err := c.GetDocument(context.Background(), "users", "u1")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "getDocument")
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(Config{Endpoint: url + "/v1", ProjectID: "p", DatabaseID: "db"})
	require.NoError(t, err)

	_, err = c.GetDocument(context.Background(), "users", "u1")
	assert.ErrorIs(t, err, documents.ErrUnavailable)
	assert.True(t, documents.IsTransportFailure(err))
}

func TestStorage_UploadViewDelete(t *testing.T) {
	var uploadedName, uploadedBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/storage/buckets/images/files":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "unique()", r.FormValue("fileId"))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			uploadedName = hdr.Filename
			uploadedBody = string(data)
			writeJSON(t, w, http.StatusCreated, map[string]any{
				"$id": "f1", "name": hdr.Filename, "mimeType": "image/gif", "sizeOriginal": len(data),
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/storage/buckets/images/files/f1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "missing", "code": 404})
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	s, err := NewStorage(Config{Endpoint: server.URL + "/v1/", ProjectID: "proj", BucketID: "images"})
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.UploadFile(ctx, blobs.File{Name: "cat.gif", ContentType: "image/gif", Data: []byte("GIF89a")})
	require.NoError(t, err)
	assert.Equal(t, "f1", ref.ID)
	assert.Equal(t, "cat.gif", uploadedName)
	assert.Equal(t, "GIF89a", uploadedBody)

	view, err := s.GetFileView(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(view, "/v1/storage/buckets/images/files/f1/view?project=proj"), view)

	require.NoError(t, s.DeleteFile(ctx, "f1"))
	assert.ErrorIs(t, s.DeleteFile(ctx, "f2"), blobs.ErrFileNotFound)

	_, err = s.UploadFile(ctx, blobs.File{ContentType: "image/gif"})
	assert.ErrorIs(t, err, blobs.ErrEmptyFile)
}
