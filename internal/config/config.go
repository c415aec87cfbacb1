// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"Snapfeed/internal/core/creators"
	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/feed"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/querycache"
)

// Store and blob backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendAppwrite = "appwrite"
	BackendMinio    = "minio"
)

// ErrInvalidLogLevel is returned for a LOG_LEVEL outside debug|info|warn|error.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Config holds all server settings.
type Config struct {
	Appwrite    AppwriteConfig
	Minio       MinioConfig
	Collections documents.Collections

	Port      string
	LogLevel  string
	LogFormat string

	StoreBackend string
	BlobBackend  string
	DatabaseURL  string
	RedisURL     string

	AuthJWTSecret string
	AuthIssuer    string

	OTELEndpoint    string
	OTELServiceName string

	PlaceholderImage string

	CacheTTL         time.Duration
	FeedPageSize     int
	RecentPostsLimit int

	RateLimitRPS   float64
	RateLimitBurst int
}

// AppwriteConfig is the remote document and file store.
type AppwriteConfig struct {
	Endpoint   string
	ProjectID  string
	APIKey     string
	DatabaseID string
	StorageID  string
}

// MinioConfig is the S3-compatible blob backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration
}

// Load reads the configuration from the environment, applying defaults.
// Malformed numbers and durations are errors; the result still needs Validate.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("APP_PORT", "8080"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", "json")),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		BlobBackend:  strings.ToLower(getEnv("BLOB_BACKEND", BackendMemory)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		Appwrite: AppwriteConfig{
			Endpoint:   os.Getenv("APPWRITE_ENDPOINT"),
			ProjectID:  os.Getenv("APPWRITE_PROJECT_ID"),
			APIKey:     os.Getenv("APPWRITE_API_KEY"),
			DatabaseID: os.Getenv("APPWRITE_DATABASE_ID"),
			StorageID:  os.Getenv("APPWRITE_STORAGE_ID"),
		},
		Collections: documents.Collections{
			Posts: getEnv("POST_COLLECTION_ID", "posts"),
			Users: getEnv("USER_COLLECTION_ID", "users"),
			Saves: getEnv("SAVES_COLLECTION_ID", "saves"),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "snapfeed"),
		},
		AuthJWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
		AuthIssuer:       os.Getenv("AUTH_ISSUER"),
		OTELEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELServiceName:  getEnv("OTEL_SERVICE_NAME", "snapfeed"),
		PlaceholderImage: getEnv("PLACEHOLDER_PROFILE_IMAGE", creators.DefaultPlaceholder),
	}

	var errs []error
	cfg.Minio.UseSSL, errs = parseBool(errs, "MINIO_USE_SSL", false)
	cfg.Minio.URLTTL, errs = parseDuration(errs, "MINIO_URL_TTL", time.Hour)
	cfg.CacheTTL, errs = parseDuration(errs, "CACHE_TTL", querycache.DefaultTTL)
	cfg.FeedPageSize, errs = parseInt(errs, "FEED_PAGE_SIZE", feed.DefaultPageSize)
	cfg.RecentPostsLimit, errs = parseInt(errs, "RECENT_POSTS_LIMIT", posts.DefaultRecentLimit)
	cfg.RateLimitRPS, errs = parseFloat(errs, "RATE_LIMIT_RPS", 10)
	cfg.RateLimitBurst, errs = parseInt(errs, "RATE_LIMIT_BURST", 20)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if err := c.Collections.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case BackendAppwrite:
		if err := c.appwriteBase(); err != nil {
			errs = append(errs, err)
		}
		if c.Appwrite.DatabaseID == "" {
			errs = append(errs, errors.New("APPWRITE_DATABASE_ID is required for the appwrite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be memory, postgres or appwrite, got %q", c.StoreBackend))
	}

	switch c.BlobBackend {
	case BackendMemory:
	case BackendMinio:
		if c.Minio.Endpoint == "" || c.Minio.AccessKey == "" || c.Minio.SecretKey == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio blob store"))
		}
	case BackendAppwrite:
		if c.StoreBackend != BackendAppwrite {
			if err := c.appwriteBase(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.Appwrite.StorageID == "" {
			errs = append(errs, errors.New("APPWRITE_STORAGE_ID is required for the appwrite blob store"))
		}
	default:
		errs = append(errs, fmt.Errorf("BLOB_BACKEND must be memory, minio or appwrite, got %q", c.BlobBackend))
	}

	if c.AuthJWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.FeedPageSize <= 0 || c.FeedPageSize > documents.MaxLimit {
		errs = append(errs, fmt.Errorf("FEED_PAGE_SIZE must be between 1 and %d", documents.MaxLimit))
	}
	if c.RecentPostsLimit <= 0 || c.RecentPostsLimit > documents.MaxLimit {
		errs = append(errs, fmt.Errorf("RECENT_POSTS_LIMIT must be between 1 and %d", documents.MaxLimit))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) appwriteBase() error {
	if c.Appwrite.Endpoint == "" || c.Appwrite.ProjectID == "" || c.Appwrite.APIKey == "" {
		return errors.New("APPWRITE_ENDPOINT, APPWRITE_PROJECT_ID and APPWRITE_API_KEY are required for appwrite backends")
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*slog.Logger, error) {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(errs []error, key string, fallback int) (int, []error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, errs
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
	}
	return v, errs
}

func parseFloat(errs []error, key string, fallback float64) (float64, []error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, errs
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: invalid number %q", key, raw))
	}
	return v, errs
}

func parseBool(errs []error, key string, fallback bool) (bool, []error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, errs
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
	}
	return v, errs
}

func parseDuration(errs []error, key string, fallback time.Duration) (time.Duration, []error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, errs
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
	}
	return v, errs
}
