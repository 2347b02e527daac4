package service

import (
	"fmt"
)

// ErrSafetyLock is raised when a destructive flush is requested with a
// confirmation token that does not match the live target. Never auto-retried;
// always surfaced to the operator.
type ErrSafetyLock struct {
	error
}

func NewErrSafetyLock(projectID string) *ErrSafetyLock {
	return &ErrSafetyLock{fmt.Errorf("SAFETY_LOCK: confirmation token mismatch for project %q, expected %q", projectID, "FLUSH "+projectID)}
}

type ErrJobNotFound struct {
	error
}

func NewErrJobNotFound(id string) *ErrJobNotFound {
	return &ErrJobNotFound{fmt.Errorf("job %s not found", id)}
}

// ErrJobStopped interrupts a run between category iterations after a stop was
// requested externally.
type ErrJobStopped struct {
	error
}

func NewErrJobStopped(id string) *ErrJobStopped {
	return &ErrJobStopped{fmt.Errorf("job %s was stopped", id)}
}

// ErrMissingCredentials aborts a run before any destructive action when no
// usable provider credentials are configured.
type ErrMissingCredentials struct {
	error
}

func NewErrMissingCredentials() *ErrMissingCredentials {
	return &ErrMissingCredentials{fmt.Errorf("no usable provider credentials configured")}
}

type ErrPreflightFailed struct {
	error
}

func NewErrPreflightFailed(diagnostic string) *ErrPreflightFailed {
	return &ErrPreflightFailed{fmt.Errorf("preflight failed: %s", diagnostic)}
}
