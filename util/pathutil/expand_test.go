package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("EDITSYNC_TEST_DIR", "projects")

	got, err := Expand("~/code")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "code"), got)

	got, err = Expand("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = Expand("/srv/$EDITSYNC_TEST_DIR")
	require.NoError(t, err)
	assert.Equal(t, "/srv/projects", got)

	got, err = Expand("rel")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestResolveFollowsSymlinks(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	got, err := Resolve(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	missing := filepath.Join(dir, "missing")
	got, err = Resolve(missing)
	require.NoError(t, err)
	assert.Equal(t, missing, got)
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/ws", "/ws"))
	assert.True(t, Within("/ws", "/ws/src/a.js"))
	assert.True(t, Within("/ws", "/ws/..a"))
	assert.False(t, Within("/ws", "/wsx/a.js"))
	assert.False(t, Within("/ws", "/other"))
}
