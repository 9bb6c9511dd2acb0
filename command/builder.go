// Package command builds validated, time-limited external commands. The
// nvim runtime uses it to probe the editor binary before a session starts.
package command

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 10 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 2 * time.Minute
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"binary":   validateBinary,
		"fileName": validateFileName,
		"argument": validateArgument,
	}
}

var binaryPattern = regexp.MustCompile(`^[a-zA-Z0-9/_.+-]+$`)

// validateBinary accepts a program name or path without shell syntax.
func validateBinary(name string) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if !binaryPattern.MatchString(name) {
		return fmt.Errorf("invalid command name: %s", name)
	}
	return nil
}

// validateFileName ensures file paths are safe
func validateFileName(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("file path cannot contain '..'")
	}
	if strings.ContainsAny(path, ";|&$`") {
		return fmt.Errorf("file path contains invalid characters")
	}
	return nil
}

// validateArgument rejects NUL bytes, which exec cannot pass through.
func validateArgument(arg string) error {
	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("argument contains a NUL byte")
	}
	return nil
}

// Command represents a safe command configuration
type Command struct {
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build validates name and args and returns a command using the default timeout.
func (sb *SafeBuilder) Build(name string, args ...string) (*Command, error) {
	if err := validateBinary(name); err != nil {
		return nil, err
	}
	for _, arg := range args {
		if err := validateArgument(arg); err != nil {
			return nil, err
		}
	}
	return &Command{
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command, capped at MaxTimeout.
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}
	return validator(value)
}

// Output runs the command and returns its trimmed stdout.
func (c *Command) Output(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.executor.CommandContext(ctx, c.name, c.args...).Output() //nolint:gosec // SafeBuilder provides validation
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%s timed out after %s", c.name, c.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", c.name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}
