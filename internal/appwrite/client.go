// Package appwrite talks to an Appwrite-compatible backend over its REST API.
// Client implements documents.Client against the databases API and Storage
// implements blobs.Store against the storage API.
package appwrite

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/metrics"

	"resty.dev/v3"
)

// Config holds the connection settings for one Appwrite project.
type Config struct {
	Endpoint   string // e.g. https://cloud.appwrite.io/v1
	ProjectID  string
	APIKey     string
	DatabaseID string
	BucketID   string
	Timeout    time.Duration
}

// Validate checks the settings needed by the databases API.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("appwrite endpoint is required")
	}
	if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
		return fmt.Errorf("invalid appwrite endpoint: %w", err)
	}
	if c.ProjectID == "" {
		return fmt.Errorf("appwrite project ID is required")
	}
	if c.DatabaseID == "" {
		return fmt.Errorf("appwrite database ID is required")
	}
	return nil
}

// apiError is the error body returned by Appwrite.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func newRestyClient(cfg Config) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("X-Appwrite-Project", cfg.ProjectID).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-Appwrite-Key", cfg.APIKey)
	}
	client.AddResponseMiddleware(metricMiddleware)
	return client
}

func metricMiddleware(_ *resty.Client, response *resty.Response) error {
	path := response.Request.URL
	if u, err := url.Parse(response.Request.URL); err == nil {
		path = u.Path
	}
	metrics.StoreRequestLatency.WithLabelValues(
		response.Request.Method,
		path,
		strconv.Itoa(response.StatusCode()),
	).Observe(response.Duration().Seconds())
	return nil
}

// wrapAPIError maps a transport error or non-2xx response onto the documents error taxonomy.
// This allows callers to use errors.Is() for reliable error detection.
func wrapAPIError(res *resty.Response, err error, operation string) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %v", operation, documents.ErrUnavailable, err)
	}
	if !res.IsError() {
		return nil
	}

	message := res.Status()
	if body, ok := res.Error().(*apiError); ok && body != nil && body.Message != "" {
		message = body.Message
	}

	switch res.StatusCode() {
	case 400:
		return fmt.Errorf("%s: %w: %s", operation, documents.ErrBadRequest, message)
	case 401:
		return fmt.Errorf("%s: %w: %s", operation, documents.ErrUnauthorized, message)
	case 403:
		return fmt.Errorf("%s: %w: %s", operation, documents.ErrForbidden, message)
	case 404:
		return fmt.Errorf("%s: %w: %s", operation, documents.ErrNotFound, message)
	case 409:
		return fmt.Errorf("%s: %w: %s", operation, documents.ErrConflict, message)
	case 429:
		return fmt.Errorf("%s: %w: %s", operation, documents.ErrRateLimited, message)
	default:
		return fmt.Errorf("%s: %w: HTTP %d: %s", operation, documents.ErrUnavailable, res.StatusCode(), message)
	}
}
