package nvim

import (
	"context"
	"os/exec"
	"testing"

	"github.com/grovetools/editsync/command"
	"github.com/grovetools/editsync/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// printExecutor prints a fixed text instead of running the program.
type printExecutor string

func (p printExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "printf", "%s", string(p))
}

func TestProbe(t *testing.T) {
	sb := command.NewSafeBuilderWithExecutor(printExecutor("NVIM v0.10.2\nBuild type: Release\n"))
	version, err := Probe(context.Background(), Options{}, sb)
	require.NoError(t, err)
	assert.Equal(t, "0.10.2", version)
}

func TestProbeRejectsOtherPrograms(t *testing.T) {
	sb := command.NewSafeBuilderWithExecutor(printExecutor("VIM - Vi IMproved 9.1\n"))
	_, err := Probe(context.Background(), Options{Command: "vim"}, sb)
	assert.True(t, errors.Is(err, errors.ErrCodeResourceUnavailable))
}

func TestProbeRejectsShellSyntax(t *testing.T) {
	_, err := Probe(context.Background(), Options{Command: "nvim;true"}, command.NewSafeBuilder())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
