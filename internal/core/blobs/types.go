package blobs

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// MaxFileSize is the largest accepted upload (6MB).
const MaxFileSize = 6291456

var (
	// ErrFileNotFound is returned when a file ID does not exist in the store.
	ErrFileNotFound = errors.New("file not found")

	// ErrEmptyFile is returned when an upload carries no data.
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileTooLarge is returned when an upload exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds maximum size of 6MB")

	// ErrUnsupportedType is returned for MIME types outside the image allowlist.
	ErrUnsupportedType = errors.New("unsupported MIME type (allowed: image/jpeg, image/png, image/webp, image/gif)")

	// ErrStoreUnavailable wraps transport failures of a remote blob store.
	ErrStoreUnavailable = errors.New("blob store unavailable")
)

// File is an upload request.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileRef identifies a stored file.
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// Store is the external blob store used for post images.
type Store interface {
	// UploadFile validates and stores a file, returning its reference.
	UploadFile(ctx context.Context, file File) (*FileRef, error)

	// GetFileView returns a URL the client can load the file from.
	GetFileView(ctx context.Context, fileID string) (string, error)

	// DeleteFile removes a file. Returns ErrFileNotFound when absent.
	DeleteFile(ctx context.Context, fileID string) error
}

// Prepare validates an upload and normalizes its content type in place.
// A missing content type is sniffed from the data.
func Prepare(file *File) error {
	if len(file.Data) == 0 {
		return ErrEmptyFile
	}
	if len(file.Data) > MaxFileSize {
		return ErrFileTooLarge
	}

	mimeType := file.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(file.Data)
	}
	mimeType = normalizeMimeType(mimeType)
	if !isValidMimeType(mimeType) {
		return ErrUnsupportedType
	}
	file.ContentType = mimeType
	return nil
}

// ViewURL joins a public base URL and a file ID.
// Format: {baseURL}/files/{id}/view
func ViewURL(baseURL, fileID string) string {
	if fileID == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + "/files/" + url.PathEscape(fileID) + "/view"
}

// normalizeMimeType strips parameters and converts non-standard MIME types to their standard equivalents
// Common case: Many browsers and CDNs send image/jpg instead of the standard image/jpeg
func normalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	default:
		return mimeType
	}
}

// isValidMimeType checks if the MIME type is allowed for post images
func isValidMimeType(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	default:
		return false
	}
}
