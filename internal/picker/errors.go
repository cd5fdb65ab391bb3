// Package picker is an HTTP client for the Google Photos Picker API. It
// creates picking sessions, waits for the user to finish selecting,
// enumerates the picked items, and downloads their bytes.
package picker

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Use errors.Is to check.
var (
	// ErrSessionCreate means the API rejected session creation.
	ErrSessionCreate = errors.New("picker: session creation failed")
	// ErrSelectionTimeout means the user did not finish selecting within
	// the allowed wait.
	ErrSelectionTimeout = errors.New("picker: timed out waiting for selection")
	// ErrTransientState names the 400/412 race while a finished session is
	// still being finalized server-side. Only enumeration treats those
	// statuses this way, and it retries them rather than returning them.
	ErrTransientState = errors.New("picker: session not finalized yet")
	// ErrNoDownloadURL means an item carries no base URL at any level.
	ErrNoDownloadURL = errors.New("picker: item has no download URL")
	// ErrDownload means fetching an item's bytes returned a non-2xx status.
	ErrDownload = errors.New("picker: download failed")

	ErrBadRequest         = errors.New("picker: bad request")
	ErrPreconditionFailed = errors.New("picker: precondition failed")
	ErrUnauthorized       = errors.New("picker: unauthorized")
	ErrForbidden          = errors.New("picker: forbidden")
	ErrNotFound           = errors.New("picker: not found")
	ErrThrottled          = errors.New("picker: throttled")
	ErrServerError        = errors.New("picker: server error")
)

// APIError carries the HTTP status and body of a failed API call.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("picker: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isTransient reports whether err is the enumeration race that is retried
// rather than surfaced.
func isTransient(err error) bool {
	return errors.Is(err, ErrBadRequest) || errors.Is(err, ErrPreconditionFailed)
}
