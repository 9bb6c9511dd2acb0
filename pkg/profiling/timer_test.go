package profiling

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartIsNoopWhenDisabled(t *testing.T) {
	Reset()
	Start("serve/config").Stop()

	var out bytes.Buffer
	Summarize(&out)
	assert.Empty(t, out.String())
}

func TestSummarizeNestsSpans(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	Enable()

	outer := Start("serve")
	Start("serve/workspace").Stop()
	Start("serve/session").Stop()
	outer.Stop()

	var out bytes.Buffer
	Summarize(&out)
	s := out.String()
	assert.Contains(t, s, "Timing (total")
	assert.Contains(t, s, "\n- serve (")
	assert.Contains(t, s, "\n  - serve/workspace (")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("serve/workspace")), bytes.Index(out.Bytes(), []byte("serve/session")))
}

func TestStopIsIdempotent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	Enable()

	a := Start("a")
	a.Stop()
	a.Stop()
	Start("b").Stop()

	var out bytes.Buffer
	Summarize(&out)
	assert.Contains(t, out.String(), "\n- a (")
	assert.Contains(t, out.String(), "\n- b (")
}
