package cli

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/grovetools/editsync/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestParseDescription(t *testing.T) {
	desc, examples := parseDescription("Apply a batch.\n\nExamples:\n  editsync apply ops.json")
	assert.Equal(t, "Apply a batch.", desc)
	assert.Equal(t, "editsync apply ops.json", examples)

	desc, examples = parseDescription("Only text")
	assert.Equal(t, "Only text", desc)
	assert.Empty(t, examples)
}

func TestWriteHelp(t *testing.T) {
	root := NewStandardCommand("editsync", "Keep an editor in sync")
	sub := &cobra.Command{
		Use:   "apply [file]",
		Short: "Apply an operation batch",
		Long:  "Apply an operation batch.\n\nExamples:\n  # from stdin\n  editsync apply -",
		RunE:  func(*cobra.Command, []string) error { return nil },
	}
	sub.Flags().String("mode", "reject", "Overlap policy")
	root.AddCommand(sub)

	var out bytes.Buffer
	writeHelp(&out, root, 60)
	assert.Contains(t, out.String(), "EDITSYNC")
	assert.Contains(t, out.String(), "COMMANDS")
	assert.Contains(t, out.String(), "apply")

	out.Reset()
	writeHelp(&out, sub, 60)
	help := out.String()
	assert.Contains(t, help, "FLAGS")
	assert.Contains(t, help, "--mode")
	assert.Contains(t, help, "(default: reject)")
	assert.Contains(t, help, "EXAMPLES")
	assert.Contains(t, help, "# from stdin")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
	assert.Equal(t, "short", wrapText("short", 40))
}

func TestErrorHandler(t *testing.T) {
	var out bytes.Buffer
	h := NewErrorHandler(false, &out)

	err := errors.DaemonUnavailable("/tmp/e.sock", stderrors.New("refused"))
	assert.Same(t, err, h.Handle(err))
	assert.Contains(t, out.String(), "/tmp/e.sock")
	assert.Contains(t, out.String(), "editsync serve")

	out.Reset()
	h.Verbose = true
	h.Handle(errors.ConcurrentApply())
	assert.Contains(t, out.String(), "Retry")
	assert.Contains(t, out.String(), "CONCURRENT_APPLY")

	assert.NoError(t, h.Handle(nil))
}
