package errors

import (
	"fmt"
)

// DefaultCallbackErrorMessage is used when a callback is rejected without a message.
const DefaultCallbackErrorMessage = "Something went wrong while saving the file."

// BootstrapFailed wraps the cause of a failed editing surface bootstrap
func BootstrapFailed(stage string, err error) *SessionError {
	return Wrap(err, ErrCodeBootstrapFailed, fmt.Sprintf("editor bootstrap failed during %s", stage)).
		WithDetail("stage", stage)
}

// AlreadyInitialized is returned when a session is initialized twice
func AlreadyInitialized() *SessionError {
	return New(ErrCodeAlreadyInitialized, "editor session is already initialized")
}

// NotInitialized is returned when an operation needs Initialize to have been called
func NotInitialized(op string) *SessionError {
	return New(ErrCodeNotInitialized, fmt.Sprintf("%s called before initialize", op)).
		WithDetail("operation", op)
}

// ConcurrentApply is returned when an operation batch is submitted while another is applying
func ConcurrentApply() *SessionError {
	return New(ErrCodeConcurrentApply, "another operation batch is still being applied")
}

// InvalidOperation creates an invalid operation error for a document path
func InvalidOperation(path string, reason string) *SessionError {
	return New(ErrCodeInvalidOperation, fmt.Sprintf("invalid operation for %s: %s", path, reason)).
		WithDetail("path", path)
}

// MailboxFull is returned when too many calls are queued before the editor is ready
func MailboxFull(op string, size int) *SessionError {
	return New(ErrCodeMailboxFull,
		fmt.Sprintf("cannot queue %s: %d calls already pending editor readiness", op, size)).
		WithDetail("operation", op).
		WithDetail("size", size)
}

// SessionDisposed is returned for calls made after Unmount
func SessionDisposed(op string) *SessionError {
	return New(ErrCodeSessionDisposed, fmt.Sprintf("%s called on an unmounted session", op)).
		WithDetail("operation", op)
}

// SurfaceFailed wraps an error returned by the editing surface
func SurfaceFailed(op string, err error) *SessionError {
	return Wrap(err, ErrCodeSurfaceFailed, fmt.Sprintf("editing surface failed: %s", op)).
		WithDetail("operation", op)
}

// CallbackExists is returned when a callback id is registered twice
func CallbackExists(id string) *SessionError {
	return New(ErrCodeCallbackExists, fmt.Sprintf("callback '%s' is already registered", id)).
		WithDetail("id", id)
}

// UnknownExtension is returned for extension ids outside the known set
func UnknownExtension(id string) *SessionError {
	return New(ErrCodeUnknownExtension, fmt.Sprintf("extension '%s' is not known", id)).
		WithDetail("extension", id)
}

// ExtensionStore wraps a failure of the persisted extension store
func ExtensionStore(key string, err error) *SessionError {
	return Wrap(err, ErrCodeExtensionStore, "failed to access extension settings").
		WithDetail("key", key)
}

// ResourceUnavailable creates an error for a required resource that never became available
func ResourceUnavailable(path string, err error) *SessionError {
	return Wrap(err, ErrCodeResourceUnavailable, fmt.Sprintf("resource not available: %s", path)).
		WithDetail("path", path)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *SessionError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *SessionError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// DaemonUnavailable wraps a failure to reach the session daemon
func DaemonUnavailable(socket string, err error) *SessionError {
	return Wrap(err, ErrCodeDaemonUnavailable, "editsync daemon is not reachable").
		WithDetail("socket", socket)
}

// DaemonRunning reports that another daemon owns the pidfile
func DaemonRunning(pid int, pidFile string) *SessionError {
	return New(ErrCodeDaemonRunning, fmt.Sprintf("editsync daemon already running with PID %d", pid)).
		WithDetail("pid", pid).
		WithDetail("pidFile", pidFile)
}
