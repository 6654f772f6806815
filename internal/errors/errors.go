// Package errors provides error code definitions for the Nalam core engine.
package errors

import "fmt"

// ErrorCode represents a unique error code.
type ErrorCode string

const (
	// Storage errors: local persistence failed (schema or IO). Fatal to
	// the calling operation during initialization.
	ErrStorage       ErrorCode = "STORAGE_ERROR"
	ErrStoreNotReady ErrorCode = "STORE_NOT_READY"
	ErrMigration     ErrorCode = "MIGRATION_FAILED"

	// Transport errors: a remote call failed (network or HTTP status).
	// Recovered locally during queue drains, never surfaced to callers.
	ErrTransport ErrorCode = "TRANSPORT_ERROR"

	// Capability errors: the platform cannot perform an action. Recovered
	// by degrading, e.g. SMS compose falls back to manual instructions.
	ErrCapability     ErrorCode = "CAPABILITY_ERROR"
	ErrSMSUnavailable ErrorCode = "SMS_UNAVAILABLE"

	// Input errors: the caller passed invalid parameters. The only class
	// that rejects the caller's request outright.
	ErrInput            ErrorCode = "INPUT_ERROR"
	ErrUnknownQueueKind ErrorCode = "UNKNOWN_QUEUE_KIND"
	ErrInvalidSeverity  ErrorCode = "INVALID_SEVERITY"

	// Location errors: resolution timed out or was denied. Alerts proceed
	// without a location.
	ErrLocationTimeout     ErrorCode = "LOCATION_TIMEOUT"
	ErrLocationUnavailable ErrorCode = "LOCATION_UNAVAILABLE"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.Code == code {
				return true
			}
			err = appErr.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsStorage reports whether err carries a storage-class code.
func IsStorage(err error) bool {
	return Is(err, ErrStorage) || Is(err, ErrStoreNotReady) || Is(err, ErrMigration)
}

// IsTransport reports whether err carries the transport code.
func IsTransport(err error) bool {
	return Is(err, ErrTransport)
}

// IsInput reports whether err carries an input-class code.
func IsInput(err error) bool {
	return Is(err, ErrInput) || Is(err, ErrUnknownQueueKind) || Is(err, ErrInvalidSeverity)
}
