package errors

import (
	"errors"
	"fmt"
)

const (
	TransientRateLimit = "rate-limit"
	TransientServer500 = "server-500"
)

// TransientBackendError indicates a known transient failure of the
// subscription backend (HTTP 429 throttling or a 500 on GET). The run
// loop recovers from it with a bounded backoff; it only escapes the
// loop wrapped in a RunExhaustedError.
type TransientBackendError struct {
	Kind string
}

func NewRateLimitError() *TransientBackendError {
	return &TransientBackendError{Kind: TransientRateLimit}
}

func NewServerError() *TransientBackendError {
	return &TransientBackendError{Kind: TransientServer500}
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend failure: %s", e.Kind)
}

// IsTransientBackendError checks if the error is a TransientBackendError.
func IsTransientBackendError(err error) bool {
	var e *TransientBackendError
	return errors.As(err, &e)
}

// RunExhaustedError indicates all launch attempts finished with a
// transient backend error.
type RunExhaustedError struct {
	Attempts int
}

func NewRunExhaustedError(attempts int) *RunExhaustedError {
	return &RunExhaustedError{Attempts: attempts}
}

func (e *RunExhaustedError) Error() string {
	return fmt.Sprintf("failed to run virt-who after %d attempts", e.Attempts)
}

// IsRunExhaustedError checks if the error is a RunExhaustedError.
func IsRunExhaustedError(err error) bool {
	var e *RunExhaustedError
	return errors.As(err, &e)
}

// ProcessCleanupError indicates the agent process could not be confirmed
// stopped after the service stop and kill attempts.
type ProcessCleanupError struct {
	Name string
}

func NewProcessCleanupError(name string) *ProcessCleanupError {
	return &ProcessCleanupError{Name: name}
}

func (e *ProcessCleanupError) Error() string {
	return fmt.Sprintf("failed to stop and clean %s process", e.Name)
}

// IsProcessCleanupError checks if the error is a ProcessCleanupError.
func IsProcessCleanupError(err error) bool {
	var e *ProcessCleanupError
	return errors.As(err, &e)
}
