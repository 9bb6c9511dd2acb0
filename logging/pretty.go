package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/editsync/tui/theme"
)

// PrettyLogger prints short human-facing results of CLI commands. Daemon
// diagnostics go through NewLogger instead.
type PrettyLogger struct {
	writer io.Writer
}

// NewPrettyLogger creates a pretty logger writing to stderr.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{writer: os.Stderr}
}

// WithWriter redirects output, usually to cmd.OutOrStdout().
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	return p
}

// Success prints a checkmarked message.
func (p *PrettyLogger) Success(format string, args ...interface{}) {
	fmt.Fprintf(p.writer, "%s %s\n",
		theme.DefaultTheme.Success.Render("✓"),
		fmt.Sprintf(format, args...))
}

// Warn prints a message that needs attention but is not a failure.
func (p *PrettyLogger) Warn(format string, args ...interface{}) {
	fmt.Fprintf(p.writer, "%s %s\n",
		theme.DefaultTheme.Warning.Render("!"),
		fmt.Sprintf(format, args...))
}

// Field prints a muted key and a bold value.
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s %s\n",
		theme.DefaultTheme.Muted.Render(key+":"),
		theme.DefaultTheme.Bold.Render(fmt.Sprint(value)))
}
