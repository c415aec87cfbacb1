// Package s3 stores post images in an S3-compatible bucket (MinIO in development).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"Snapfeed/internal/core/blobs"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultURLTTL is how long a presigned view URL stays valid.
const DefaultURLTTL = 24 * time.Hour

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration
}

// Storage implements blobs.Store on top of a MinIO client.
type Storage struct {
	client *minio.Client
	cfg    Config
}

var _ blobs.Store = (*Storage)(nil)

func New(cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = DefaultURLTTL
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &Storage{cfg: cfg, client: cl}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// UploadFile implements blobs.Store. Objects are keyed by a fresh UUID.
func (s *Storage) UploadFile(ctx context.Context, file blobs.File) (*blobs.FileRef, error) {
	if err := blobs.Prepare(&file); err != nil {
		return nil, err
	}

	key := uuid.NewString()
	opts := minio.PutObjectOptions{ContentType: file.ContentType}
	if file.Name != "" {
		opts.UserMetadata = map[string]string{"filename": file.Name}
	}
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key,
		bytes.NewReader(file.Data), int64(len(file.Data)), opts)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w: %v", blobs.ErrStoreUnavailable, err)
	}

	return &blobs.FileRef{
		ID:       key,
		Name:     file.Name,
		MimeType: file.ContentType,
		Size:     int(info.Size),
	}, nil
}

// GetFileView implements blobs.Store with a presigned GET URL.
func (s *Storage) GetFileView(ctx context.Context, fileID string) (string, error) {
	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, fileID, minio.StatObjectOptions{}); err != nil {
		return "", wrapError(err, "get file view")
	}
	u, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, fileID, s.cfg.URLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign view URL: %w: %v", blobs.ErrStoreUnavailable, err)
	}
	return u.String(), nil
}

// DeleteFile implements blobs.Store.
// RemoveObject succeeds for missing keys, so existence is checked first.
func (s *Storage) DeleteFile(ctx context.Context, fileID string) error {
	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, fileID, minio.StatObjectOptions{}); err != nil {
		return wrapError(err, "delete file")
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, fileID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete file: %w: %v", blobs.ErrStoreUnavailable, err)
	}
	return nil
}

func wrapError(err error, operation string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return fmt.Errorf("%s: %w", operation, blobs.ErrFileNotFound)
	}
	return fmt.Errorf("%s: %w: %v", operation, blobs.ErrStoreUnavailable, err)
}
