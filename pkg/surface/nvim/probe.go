package nvim

import (
	"context"
	"strings"

	"github.com/grovetools/editsync/command"
	"github.com/grovetools/editsync/errors"
)

// Probe checks that the configured nvim binary runs and returns the version
// from the first line of `nvim --version`, e.g. "0.10.2".
func Probe(ctx context.Context, opts Options, sb *command.SafeBuilder) (string, error) {
	name := opts.Command
	if name == "" {
		name = "nvim"
	}
	cmd, err := sb.Build(name, "--version")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid nvim command")
	}
	out, err := cmd.Output(ctx)
	if err != nil {
		return "", errors.ResourceUnavailable(name, err)
	}

	first, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(first)
	if len(fields) < 2 || fields[0] != "NVIM" {
		return "", errors.New(errors.ErrCodeResourceUnavailable, "unexpected nvim --version output").
			WithDetail("output", first)
	}
	return strings.TrimPrefix(fields[1], "v"), nil
}
