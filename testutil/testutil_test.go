package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFiles(t *testing.T) {
	root := t.TempDir()
	WriteFiles(t, root, map[string]string{
		"a.js":          "a",
		"src/deep/b.js": "b",
	})

	data, err := os.ReadFile(filepath.Join(root, "src", "deep", "b.js"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestWaitFor(t *testing.T) {
	n := 0
	assert.True(t, WaitFor(time.Second, func() bool { n++; return n > 2 }))
	assert.False(t, WaitFor(20*time.Millisecond, func() bool { return false }))
}

func TestShortTempDir(t *testing.T) {
	dir := ShortTempDir(t)
	assert.Less(t, len(filepath.Join(dir, "d.sock")), 100)
	assert.DirExists(t, dir)
}
