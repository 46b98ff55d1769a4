package client

import (
	"errors"
	"fmt"
)

// Failure taxonomy for remote application. The sync engine keys its retry
// policy off these: business rejections are terminal (retrying will not
// change the business fact), transient failures drive the retry counter,
// and an expired session pauses draining instead of burning retries.
var (
	// ErrInsufficientStock is the authority's business rejection (HTTP 409):
	// the batch would violate non-negativity and nothing was applied.
	ErrInsufficientStock = errors.New("authority: insufficient stock")

	// ErrRejected covers authoritative validation rejections (HTTP 4xx other
	// than auth/conflict). Also terminal — the payload itself is bad.
	ErrRejected = errors.New("authority: rejected")

	// ErrUnauthorized means the session token was missing or expired.
	ErrUnauthorized = errors.New("authority: unauthorized")
)

// TransientError wraps network errors, timeouts, and 5xx responses —
// the retry-eligible family.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("authority: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
