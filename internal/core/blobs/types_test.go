package blobs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for http.DetectContentType to recognize a PNG.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestPrepare(t *testing.T) {
	tests := []struct {
		name     string
		file     File
		wantType string
		wantErr  error
	}{
		{
			name:     "jpeg passes",
			file:     File{ContentType: "image/jpeg", Data: []byte("x")},
			wantType: "image/jpeg",
		},
		{
			name:     "image/jpg normalized",
			file:     File{ContentType: "image/jpg", Data: []byte("x")},
			wantType: "image/jpeg",
		},
		{
			name:     "parameters stripped",
			file:     File{ContentType: "Image/PNG; charset=binary", Data: []byte("x")},
			wantType: "image/png",
		},
		{
			name:     "missing type sniffed",
			file:     File{Data: pngHeader},
			wantType: "image/png",
		},
		{
			name:    "empty data",
			file:    File{ContentType: "image/png"},
			wantErr: ErrEmptyFile,
		},
		{
			name:    "too large",
			file:    File{ContentType: "image/png", Data: bytes.Repeat([]byte{1}, MaxFileSize+1)},
			wantErr: ErrFileTooLarge,
		},
		{
			name:    "unsupported type",
			file:    File{ContentType: "application/pdf", Data: []byte("%PDF")},
			wantErr: ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.file
			err := Prepare(&f)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, f.ContentType)
		})
	}
}

func TestViewURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		fileID   string
		expected string
	}{
		{"valid inputs", "https://cdn.example.com", "abc123", "https://cdn.example.com/files/abc123/view"},
		{"trailing slash removed", "https://cdn.example.com/", "abc123", "https://cdn.example.com/files/abc123/view"},
		{"relative base", "", "abc", "/files/abc/view"},
		{"empty id returns empty", "https://cdn.example.com", "", ""},
		{"id is path escaped", "https://cdn.example.com", "a/b", "https://cdn.example.com/files/a%2Fb/view"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ViewURL(tt.baseURL, tt.fileID))
		})
	}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://localhost:8080/blobs")

	ref, err := store.UploadFile(ctx, File{Name: "a.png", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "image/png", ref.MimeType)
	assert.Equal(t, len(pngHeader), ref.Size)

	view, err := store.GetFileView(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/blobs/files/"+ref.ID+"/view", view)

	require.NoError(t, store.DeleteFile(ctx, ref.ID))
	assert.False(t, store.Has(ref.ID))

	_, err = store.GetFileView(ctx, ref.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, store.DeleteFile(ctx, ref.ID), ErrFileNotFound)
}

func TestMemoryStore_FailOn(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")
	outage := errors.New("outage")

	ref, err := store.UploadFile(ctx, File{ContentType: "image/gif", Data: []byte("GIF89a")})
	require.NoError(t, err)

	store.FailOn("view", outage)
	_, err = store.GetFileView(ctx, ref.ID)
	assert.ErrorIs(t, err, outage)

	store.FailOn("view", nil)
	_, err = store.GetFileView(ctx, ref.ID)
	assert.NoError(t, err)

	store.FailOn("upload", outage)
	_, err = store.UploadFile(ctx, File{ContentType: "image/gif", Data: []byte("GIF89a")})
	assert.ErrorIs(t, err, outage)
	assert.Equal(t, 1, store.Len())
}
