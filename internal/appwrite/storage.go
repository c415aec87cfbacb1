package appwrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/documents"

	"resty.dev/v3"
)

const (
	filesPath = "/storage/buckets/{bucketId}/files"
	filePath  = "/storage/buckets/{bucketId}/files/{fileId}"
)

// Storage implements blobs.Store using the Appwrite storage API.
type Storage struct {
	http      *resty.Client
	endpoint  string
	projectID string
	bucketID  string
}

var _ blobs.Store = (*Storage)(nil)

// NewStorage creates a storage API client for cfg.BucketID.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Endpoint == "" || cfg.ProjectID == "" {
		return nil, fmt.Errorf("appwrite endpoint and project ID are required")
	}
	if cfg.BucketID == "" {
		return nil, fmt.Errorf("appwrite bucket ID is required")
	}
	return &Storage{
		http:      newRestyClient(cfg),
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		projectID: cfg.ProjectID,
		bucketID:  cfg.BucketID,
	}, nil
}

// Close releases idle connections.
func (s *Storage) Close() error {
	return s.http.Close()
}

type fileResponse struct {
	ID       string `json:"$id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"sizeOriginal"`
}

// UploadFile implements blobs.Store.
func (s *Storage) UploadFile(ctx context.Context, file blobs.File) (*blobs.FileRef, error) {
	if err := blobs.Prepare(&file); err != nil {
		return nil, err
	}
	name := file.Name
	if name == "" {
		name = "upload"
	}

	res, err := s.http.R().
		WithContext(ctx).
		SetPathParam("bucketId", s.bucketID).
		SetMultipartFormData(map[string]string{"fileId": uniqueID}).
		SetMultipartField("file", name, file.ContentType, bytes.NewReader(file.Data)).
		SetResult(&fileResponse{}).
		SetError(&apiError{}).
		Post(filesPath)
	if err := wrapStorageError(res, err, "uploadFile"); err != nil {
		return nil, err
	}

	body := res.Result().(*fileResponse)
	return &blobs.FileRef{
		ID:       body.ID,
		Name:     body.Name,
		MimeType: body.MimeType,
		Size:     body.Size,
	}, nil
}

// GetFileView implements blobs.Store. The URL is built locally; access is
// checked by Appwrite when the client loads it.
func (s *Storage) GetFileView(_ context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("get file view: %w", blobs.ErrFileNotFound)
	}
	return fmt.Sprintf("%s/storage/buckets/%s/files/%s/view?project=%s",
		s.endpoint,
		url.PathEscape(s.bucketID),
		url.PathEscape(fileID),
		url.QueryEscape(s.projectID),
	), nil
}

// DeleteFile implements blobs.Store.
func (s *Storage) DeleteFile(ctx context.Context, fileID string) error {
	res, err := s.http.R().
		WithContext(ctx).
		SetPathParam("bucketId", s.bucketID).
		SetPathParam("fileId", fileID).
		SetError(&apiError{}).
		Delete(filePath)
	return wrapStorageError(res, err, "deleteFile")
}

// wrapStorageError reuses the document error mapping and translates it to blob errors.
func wrapStorageError(res *resty.Response, err error, operation string) error {
	wrapped := wrapAPIError(res, err, operation)
	switch {
	case wrapped == nil:
		return nil
	case errors.Is(wrapped, documents.ErrNotFound):
		return fmt.Errorf("%w: %v", blobs.ErrFileNotFound, wrapped)
	case errors.Is(wrapped, documents.ErrUnavailable), errors.Is(wrapped, documents.ErrRateLimited):
		return fmt.Errorf("%w: %v", blobs.ErrStoreUnavailable, wrapped)
	default:
		return wrapped
	}
}
