package logutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/editsync/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFindLatestLogFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "serve-2026-01-01.log"), "old", now.Add(-2*time.Hour))
	touch(t, filepath.Join(dir, "serve-2026-01-02.log"), "new", now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "serve-2026-01-03.log"), "", now)
	touch(t, filepath.Join(dir, "other-2026-01-04.log"), "x", now.Add(time.Hour))

	got, err := FindLatestLogFile(dir, "serve-")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "serve-2026-01-02.log"), got)

	_, err = FindLatestLogFile(dir, "missing-")
	assert.Error(t, err)
}

func TestFindLogFileUsesConfiguredPath(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte("logging:\n  file:\n    enabled: true\n    path: /var/log/editsync.log\n"))
	require.NoError(t, err)

	file, dir, err := FindLogFile(cfg, "serve")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/editsync.log", file)
	assert.Equal(t, "/var/log", dir)
}
