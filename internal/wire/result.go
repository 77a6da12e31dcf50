// Package wire holds the JSON payloads exchanged with the agenda server and
// the pure functions that normalize its responses.
package wire

// Result is the outcome of a remote call: either a value or a reason.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a failure reason. A nil reason is treated as ErrEmptyReason.
func Err[T any](reason error) Result[T] {
	if reason == nil {
		reason = ErrEmptyReason
	}
	return Result[T]{err: reason}
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Value returns the held value (zero on failure).
func (r Result[T]) Value() T { return r.value }

// Reason returns the failure reason (nil on success).
func (r Result[T]) Reason() error { return r.err }

// Unwrap returns the value and reason as a Go pair.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }
