package agenda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the agenda client.
var (
	// ErrNotFound is returned when a bookmark or note is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidSlug is returned when a session slug is empty or malformed.
	ErrInvalidSlug = errors.New("invalid session slug")

	// ErrInvalidYear is returned when a conference year is out of range.
	ErrInvalidYear = errors.New("invalid conference year")

	// ErrInvalidKind is returned when a bookmark kind is not event or track.
	ErrInvalidKind = errors.New("invalid bookmark kind")

	// ErrEmptyNote is returned when note text is blank.
	ErrEmptyNote = errors.New("note text is empty")

	// ErrNoteTooLong is returned when note text exceeds MaxNoteLength.
	ErrNoteTooLong = errors.New("note exceeds maximum length")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrOffline is returned when network operation is attempted in offline mode.
	ErrOffline = errors.New("operation unavailable in offline mode")

	// ErrNoOwner is returned when a remote operation needs an owner identity and none is known.
	ErrNoOwner = errors.New("owner identity not available")

	// ErrInvalidTime is returned when a schedule time is not in HH:MM form.
	ErrInvalidTime = errors.New("invalid HH:MM time")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// SyncError is returned when the remote service answers with a server-side
// failure (5xx or an unexpected status). It is retryable.
// Extractable via errors.As(). Supports Unwrap().
type SyncError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// ClientError is returned when the remote service rejects a request with a
// 4xx status. 400, 401, 403 and 404 are never retried.
type ClientError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("sync: %s rejected (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// NetworkError is returned when the remote service could not be reached.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("sync: %s: network error: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError is returned when a single remote attempt exceeds its time budget.
// The underlying cause is deliberately not wrapped.
type TimeoutError struct {
	Operation string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("sync: attempt timed out after %s", e.After)
	}
	return fmt.Sprintf("sync: %s timed out after %s", e.Operation, e.After)
}

// nonRetryableStatus lists client statuses that fail fast.
var nonRetryableStatus = map[int]bool{
	http.StatusBadRequest:   true,
	http.StatusUnauthorized: true,
	http.StatusForbidden:    true,
	http.StatusNotFound:     true,
}

// IsRetryable reports whether err is worth another attempt.
// Client errors with status 400/401/403/404 and context cancellation are final;
// timeouts, network errors, server errors and unclassified errors are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return !nonRetryableStatus[ce.StatusCode]
	}
	return true
}
