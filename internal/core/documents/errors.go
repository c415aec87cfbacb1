package documents

import "errors"

// Typed errors for document store operations.
// Every backend wraps its failures with one of these so services can use errors.Is()
// instead of inspecting status codes or driver messages.
var (
	// ErrNotFound indicates the requested document or collection does not exist (HTTP 404).
	ErrNotFound = errors.New("document not found")

	// ErrBadRequest indicates the request was malformed, including an unknown cursor (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates missing or invalid store credentials (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the credentials lack permission for the operation (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a document with the same ID already exists (HTTP 409).
	ErrConflict = errors.New("document already exists")

	// ErrRateLimited indicates the store throttled the request (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates the store could not be reached or failed internally.
	ErrUnavailable = errors.New("document store unavailable")
)

// IsNotFound reports whether err means the document is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransportFailure reports whether err is a network or store-side failure
// that may succeed on a later attempt.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

// IsAuthError returns true if the error is an authentication/authorization error.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
