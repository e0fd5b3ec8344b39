// Package errs defines the conceptual error taxonomy from the design's
// error-handling section: transient network failures, decode/schema
// failures, rate limiting, sanity violations and internal invariant
// violations. Every kind wraps errors.Is-compatibly so callers can branch
// on category without string matching.
package errs

import "errors"

var (
	// Transient marks a network failure that should be retried next tick.
	Transient = errors.New("transient network error")
	// Decode marks a structural/schema failure; the slice is left stale and
	// not retried faster than the normal schedule.
	Decode = errors.New("decode error")
	// RateLimited marks a 429-style response; the connector backs off.
	RateLimited = errors.New("rate limited")
	// Sanity marks a candidate dropped for failing a sanity check (FX out of
	// band, |premium| too large, negative price). Not an engine failure.
	Sanity = errors.New("sanity violation")
	// Invariant marks an internal invariant violation (unbalanced legs,
	// missing required field). Logged at error level; the tick continues.
	Invariant = errors.New("invariant violation")
)

// Wrap annotates err with a taxonomy kind so errors.Is(err, kind) succeeds.
func Wrap(kind error, venue, msg string, cause error) error {
	if cause == nil {
		return &taxonomyError{kind: kind, venue: venue, msg: msg}
	}
	return &taxonomyError{kind: kind, venue: venue, msg: msg, cause: cause}
}

type taxonomyError struct {
	kind  error
	venue string
	msg   string
	cause error
}

func (e *taxonomyError) Error() string {
	if e.cause == nil {
		return e.venue + ": " + e.msg
	}
	return e.venue + ": " + e.msg + ": " + e.cause.Error()
}

func (e *taxonomyError) Unwrap() error {
	return e.kind
}

// Is lets errors.Is match either the taxonomy kind or, if the underlying
// cause participates in errors.Is, the cause itself.
func (e *taxonomyError) Is(target error) bool {
	return e.kind == target || (e.cause != nil && errors.Is(e.cause, target))
}
