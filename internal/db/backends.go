// Package db selects and opens the configured storage backends.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"Snapfeed/internal/appwrite"
	"Snapfeed/internal/config"
	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/querycache"
	"Snapfeed/internal/db/memory"
	"Snapfeed/internal/db/migrations"
	"Snapfeed/internal/db/postgres"
	"Snapfeed/internal/db/rediscache"
	"Snapfeed/internal/storage/s3"

	_ "github.com/lib/pq"
)

// CloseFunc releases a backend's connections.
type CloseFunc func() error

func noopClose() error { return nil }

// OpenStore opens the document store named by cfg.StoreBackend.
// The postgres backend is migrated before it is returned.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (documents.Client, CloseFunc, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		conn, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := conn.PingContext(pingCtx); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := migrations.Up(conn); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("document store ready", "backend", cfg.StoreBackend)
		return postgres.NewDocumentStore(conn), conn.Close, nil

	case config.BackendAppwrite:
		client, err := appwrite.NewClient(appwriteConfig(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create appwrite client: %w", err)
		}
		logger.Info("document store ready", "backend", cfg.StoreBackend, "endpoint", cfg.Appwrite.Endpoint)
		return client, client.Close, nil

	default:
		logger.Warn("using in-memory document store; data is lost on restart")
		return memory.NewStore(), noopClose, nil
	}
}

// OpenBlobs opens the blob store named by cfg.BlobBackend.
// baseURL is where the in-memory backend claims to serve files from.
func OpenBlobs(ctx context.Context, cfg *config.Config, baseURL string, logger *slog.Logger) (blobs.Store, CloseFunc, error) {
	switch cfg.BlobBackend {
	case config.BackendMinio:
		storage, err := s3.New(s3.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			URLTTL:    cfg.Minio.URLTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("blob store ready", "backend", cfg.BlobBackend, "bucket", cfg.Minio.Bucket)
		return storage, noopClose, nil

	case config.BackendAppwrite:
		storage, err := appwrite.NewStorage(appwriteConfig(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create appwrite storage: %w", err)
		}
		logger.Info("blob store ready", "backend", cfg.BlobBackend, "bucket", cfg.Appwrite.StorageID)
		return storage, storage.Close, nil

	default:
		logger.Warn("using in-memory blob store; uploads are lost on restart")
		return blobs.NewMemoryStore(baseURL), noopClose, nil
	}
}

// OpenCache creates the query cache, backed by Redis when cfg.RedisURL is set.
func OpenCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*querycache.Cache, CloseFunc, error) {
	if cfg.RedisURL == "" {
		return querycache.New(querycache.NewMemoryBackend(), cfg.CacheTTL, logger), noopClose, nil
	}

	rdb, err := rediscache.Open(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("query cache backed by redis")
	return querycache.New(rediscache.NewCacheBackend(rdb), cfg.CacheTTL, logger), rdb.Close, nil
}

func appwriteConfig(cfg *config.Config) appwrite.Config {
	return appwrite.Config{
		Endpoint:   cfg.Appwrite.Endpoint,
		ProjectID:  cfg.Appwrite.ProjectID,
		APIKey:     cfg.Appwrite.APIKey,
		DatabaseID: cfg.Appwrite.DatabaseID,
		BucketID:   cfg.Appwrite.StorageID,
	}
}
