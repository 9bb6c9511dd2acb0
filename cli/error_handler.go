package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/editsync/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out.
func NewErrorHandler(verbose bool, out io.Writer) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints a hint for well-known error codes and returns err unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	sessionErr, _ := errors.As(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeDaemonUnavailable:
		fmt.Fprintf(h.Out, "❌ The editsync daemon is not running at %v\n", sessionErr.Details["socket"])
		fmt.Fprintf(h.Out, "Start it with 'editsync serve'.\n")

	case errors.ErrCodeDaemonRunning:
		fmt.Fprintf(h.Out, "❌ %s\n", sessionErr.Message)
		fmt.Fprintf(h.Out, "Stop it with 'editsync stop' or pass a different --socket.\n")

	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found: %v\n", sessionErr.Details["path"])

	case errors.ErrCodeConfigValidation, errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "❌ Invalid configuration: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'editsync config validate' for details.\n")

	case errors.ErrCodeConcurrentApply:
		fmt.Fprintf(h.Out, "❌ Another operation batch is still being applied. Retry once it finishes.\n")

	case errors.ErrCodeUnknownExtension:
		fmt.Fprintf(h.Out, "❌ Extension %v is not available in this runtime\n", sessionErr.Details["extension"])
		if s, ok := sessionErr.Details["suggestion"]; ok {
			fmt.Fprintf(h.Out, "Did you mean '%v'?\n", s)
		}

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose && sessionErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", sessionErr.ToJSON())
	}
	return err
}
