package ratelimit

import (
	"errors"
	"fmt"
)

// RateLimitExhaustedError means the retry budget was spent entirely on
// rate-limit responses. Callers halt the whole run on this one: retrying
// another category immediately would burn the same budget.
type RateLimitExhaustedError struct {
	Kind     Kind
	Attempts int
}

func (e *RateLimitExhaustedError) Error() string {
	return fmt.Sprintf("rate limit for %s still exceeded after %d attempts", e.Kind, e.Attempts)
}

// UnavailableError means the provider could not be reached (network, timeout,
// persistent 5xx). Infrastructure-class: aborts the enclosing bulk operation.
type UnavailableError struct {
	Kind Kind
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Kind, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsRateLimitExhausted reports whether err is a spent retry budget.
func IsRateLimitExhausted(err error) bool {
	var target *RateLimitExhaustedError
	return errors.As(err, &target)
}

// IsUnavailable reports whether err is a provider-unreachable failure.
func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}
