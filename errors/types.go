package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Bootstrap errors
	ErrCodeBootstrapFailed     ErrorCode = "BOOTSTRAP_FAILED"
	ErrCodeAlreadyInitialized  ErrorCode = "ALREADY_INITIALIZED"
	ErrCodeNotInitialized      ErrorCode = "NOT_INITIALIZED"
	ErrCodeResourceUnavailable ErrorCode = "RESOURCE_UNAVAILABLE"

	// Session errors
	ErrCodeConcurrentApply  ErrorCode = "CONCURRENT_APPLY"
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"
	ErrCodeMailboxFull      ErrorCode = "MAILBOX_FULL"
	ErrCodeSessionDisposed  ErrorCode = "SESSION_DISPOSED"
	ErrCodeSurfaceFailed    ErrorCode = "SURFACE_FAILED"
	ErrCodeCallbackExists   ErrorCode = "CALLBACK_EXISTS"

	// Extension errors
	ErrCodeUnknownExtension ErrorCode = "UNKNOWN_EXTENSION"
	ErrCodeExtensionStore   ErrorCode = "EXTENSION_STORE"

	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Daemon errors
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"
	ErrCodeDaemonRunning     ErrorCode = "DAEMON_RUNNING"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// SessionError represents a structured error with context
type SessionError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SessionError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *SessionError) WithDetail(key string, value interface{}) *SessionError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *SessionError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new SessionError
func New(code ErrorCode, message string) *SessionError {
	return &SessionError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a SessionError
func Wrap(err error, code ErrorCode, message string) *SessionError {
	return &SessionError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific SessionError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error. It returns the code of the
// outermost SessionError in the chain.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	sessionErr, ok := err.(*SessionError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return sessionErr.Code
}

// As returns the outermost SessionError in err's chain.
func As(err error) (*SessionError, bool) {
	for err != nil {
		if sessionErr, ok := err.(*SessionError); ok {
			return sessionErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
