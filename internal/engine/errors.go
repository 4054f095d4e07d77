package engine

import (
	"errors"
	"fmt"
)

// LifecycleError reports a callback that arrived out of order, such as a
// step outside an event or an EndRun for a run that never began.
//
// The transport collaborator is trusted, so these indicate a driver bug
// rather than bad physics data.
type LifecycleError struct {
	// Code identifies the error category.
	Code LifecycleErrorCode

	// Op is the callback that was rejected.
	Op string

	// Worker is the worker whose engine rejected the call.
	Worker int

	// Message is a human-readable description.
	Message string
}

// LifecycleErrorCode categorizes lifecycle errors.
type LifecycleErrorCode string

const (
	// ErrCodeNoRun indicates an event callback outside BeginRun/EndRun.
	ErrCodeNoRun LifecycleErrorCode = "NO_RUN"

	// ErrCodeRunActive indicates BeginRun while a run is still open.
	ErrCodeRunActive LifecycleErrorCode = "RUN_ACTIVE"

	// ErrCodeNoEvent indicates Step or EndEvent without BeginEvent.
	ErrCodeNoEvent LifecycleErrorCode = "NO_EVENT"

	// ErrCodeRunMismatch indicates EndRun with a different run id.
	ErrCodeRunMismatch LifecycleErrorCode = "RUN_MISMATCH"
)

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: %s: %s (worker=%d)", e.Code, e.Op, e.Message, e.Worker)
}

func newLifecycleError(code LifecycleErrorCode, op string, worker int, format string, args ...any) *LifecycleError {
	return &LifecycleError{
		Code:    code,
		Op:      op,
		Worker:  worker,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsLifecycleError reports whether err is a LifecycleError with the given
// code. Uses errors.As to handle wrapped errors.
func IsLifecycleError(err error, code LifecycleErrorCode) bool {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// ErrAlreadyReported is returned when a run total is reported twice.
var ErrAlreadyReported = errors.New("engine: run total already reported")
