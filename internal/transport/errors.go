package transport

import (
	"errors"
	"fmt"
	"time"
)

// Relay failures form a closed taxonomy. Adapters classify their platform's
// error types into exactly one of these wrappers; the core never inspects
// error text. An error carrying none of the wrappers is unclassified and is
// treated as permanent by callers.

// RateLimited marks an error as a rate limit with a mandatory wait.
func RateLimited(err error, retryAfter time.Duration) error {
	if err == nil {
		return nil
	}
	if retryAfter < 0 {
		retryAfter = 0
	}
	return rateLimitedError{err: err, after: retryAfter}
}

// Timeout marks an error as a delivery timeout (transient).
func Timeout(err error) error {
	if err == nil {
		return nil
	}
	return timeoutError{err: err}
}

// Transient marks an error as retryable without an explicit wait hint.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// Permanent marks an error as terminal: retrying cannot succeed
// (e.g. the bot was removed from the destination).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// RateLimitedError is implemented by errors that carry a mandatory wait.
type RateLimitedError interface {
	error
	RetryAfter() time.Duration
}

// AsRateLimited extracts the mandatory wait from a rate-limit error.
func AsRateLimited(err error) (time.Duration, bool) {
	var e RateLimitedError
	if errors.As(err, &e) {
		return e.RetryAfter(), true
	}
	return 0, false
}

func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e)
}

func IsTransient(err error) bool {
	var e transientError
	return errors.As(err, &e)
}

func IsPermanent(err error) bool {
	var e permanentError
	return errors.As(err, &e)
}

// Classified reports whether err belongs to the taxonomy at all.
func Classified(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := AsRateLimited(err); ok {
		return true
	}
	return IsTimeout(err) || IsTransient(err) || IsPermanent(err)
}

type rateLimitedError struct {
	err   error
	after time.Duration
}

func (e rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.after, e.err)
}
func (e rateLimitedError) Unwrap() error             { return e.err }
func (e rateLimitedError) RetryAfter() time.Duration { return e.after }

type timeoutError struct{ err error }

func (e timeoutError) Error() string { return fmt.Sprintf("timed out: %v", e.err) }
func (e timeoutError) Unwrap() error { return e.err }

type transientError struct{ err error }

func (e transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }
func (e transientError) Unwrap() error { return e.err }

type permanentError struct{ err error }

func (e permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }
func (e permanentError) Unwrap() error { return e.err }
