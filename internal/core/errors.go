// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData          = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrFeedUnavailable = &Error{Code: "FEED_UNAVAILABLE", Message: "market feed unavailable"}

	// Advisory errors
	ErrAdvisoryTimeout = &Error{Code: "ADVISORY_TIMEOUT", Message: "advisory analysis timed out"}
	ErrAdvisoryFailed  = &Error{Code: "ADVISORY_FAILED", Message: "advisory analysis failed"}

	// Persistence errors
	ErrPersistenceFailed = &Error{Code: "PERSISTENCE_FAILED", Message: "persistence operation failed"}

	// Model errors
	ErrModelNotFound = &Error{Code: "MODEL_NOT_FOUND", Message: "model not found"}

	// History errors
	ErrSignalNotFound = &Error{Code: "SIGNAL_NOT_FOUND", Message: "signal not found"}

	// Engine errors
	ErrTickInProgress = &Error{Code: "TICK_IN_PROGRESS", Message: "tick already in progress"}
	ErrEngineRunning  = &Error{Code: "ENGINE_RUNNING", Message: "engine already running"}
	ErrEngineStopped  = &Error{Code: "ENGINE_STOPPED", Message: "engine stopped"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
)
