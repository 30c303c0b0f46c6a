package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrArtifactNotFound is matched by every TimeoutError.
var ErrArtifactNotFound = errors.New("readiness artifact not found")

// PolicyViolation reports a missing or too short password. It is raised
// before any external binary is invoked.
type PolicyViolation struct {
	Subject   string // "master password", "account password"
	MinLength int
	Missing   bool
}

func (e *PolicyViolation) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s is required", e.Subject)
	}
	return fmt.Sprintf("%s must be at least %d characters long", e.Subject, e.MinLength)
}

type InvalidPortError struct {
	Flag  string
	Value string
}

func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("%s=%s cannot be a port number", e.Flag, e.Value)
}

// ProcessStartError means the engine could not start a container at all
// (binary missing, daemon unreachable, arguments rejected).
type ProcessStartError struct {
	Service ServiceName
	Name    string
	Err     error
}

func (e *ProcessStartError) Error() string {
	return fmt.Sprintf("start %s (%s): %v", e.Service, e.Name, e.Err)
}

func (e *ProcessStartError) Unwrap() error { return e.Err }

// ServiceExitError is a managed container or lifecycle step that exited
// non-zero.
type ServiceExitError struct {
	Service  ServiceName
	Step     string
	ExitCode int64
	Output   []byte
}

func (e *ServiceExitError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s %s exited with status %d", e.Service, e.Step, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d", e.Service, e.ExitCode)
}

// InterruptError is an operator termination observed during a blocking wait.
type InterruptError struct {
	State string
	Cause error
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("interrupted while %s: %v", e.State, e.Cause)
}

func (e *InterruptError) Unwrap() error { return e.Cause }

type TimeoutError struct {
	Path     string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not appear after %d attempts (%s)", e.Path, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrArtifactNotFound
}
