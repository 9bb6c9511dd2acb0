package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBuildsModuleMap(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "index.js", "console.log(1)")
	testutil.WriteFile(t, root, "src/app.js", "export {}")
	testutil.WriteFile(t, root, "node_modules/dep/index.js", "ignored")
	testutil.WriteFile(t, root, ".git/HEAD", "ref")
	testutil.WriteFile(t, root, "logo.png", "\x89PNG\x00\x00")

	ws, err := New(Options{Root: root, Exclude: []string{".git", "node_modules"}}, testutil.QuietLogger())
	require.NoError(t, err)
	defer ws.Close()

	modules := ws.Snapshot()
	assert.Equal(t, []string{"/index.js", "/logo.png", "/src/app.js"}, models.ModulePaths(modules))

	app := modules["/src/app.js"]
	assert.Equal(t, "export {}", app.Code)
	assert.Equal(t, "app.js", app.Title)
	assert.Len(t, app.ShortID, 8)
	assert.True(t, modules["/logo.png"].IsBinary)
	assert.Empty(t, modules["/logo.png"].Code)

	// Ids are stable across scans.
	ws2, err := New(Options{Root: root}, testutil.QuietLogger())
	require.NoError(t, err)
	defer ws2.Close()
	assert.Equal(t, app.ID, ws2.Snapshot()["/src/app.js"].ID)
}

func TestInvalidRoot(t *testing.T) {
	_, err := New(Options{Root: filepath.Join(t.TempDir(), "missing")}, testutil.QuietLogger())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestResolveRejectsEscapes(t *testing.T) {
	ws, err := New(Options{Root: t.TempDir()}, testutil.QuietLogger())
	require.NoError(t, err)
	defer ws.Close()

	_, err = ws.Resolve("/../etc/passwd")
	// path.Clean keeps the result inside the root.
	assert.NoError(t, err)

	_, err = ws.Resolve("relative.js")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = ws.Resolve("/")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestWriteNotifiesSubscribers(t *testing.T) {
	root := t.TempDir()
	ws, err := New(Options{Root: root}, testutil.QuietLogger())
	require.NoError(t, err)
	defer ws.Close()

	got := make(chan map[string]*models.Module, 1)
	unsubscribe := ws.Subscribe(func(m map[string]*models.Module) { got <- m })

	require.NoError(t, ws.Write("/saved.js", "let x = 1"))

	select {
	case m := <-got:
		require.Contains(t, m, "/saved.js")
		assert.Equal(t, "let x = 1", m["/saved.js"].Code)
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified")
	}

	data, err := os.ReadFile(filepath.Join(root, "saved.js"))
	require.NoError(t, err)
	assert.Equal(t, "let x = 1", string(data))

	unsubscribe()
	ws.Refresh()
	assert.Len(t, got, 0)
}

func TestStartPicksUpExternalChanges(t *testing.T) {
	root := t.TempDir()
	ws, err := New(Options{Root: root, Debounce: 10 * time.Millisecond}, testutil.QuietLogger())
	require.NoError(t, err)
	defer ws.Close()

	changed := make(chan map[string]*models.Module, 4)
	ws.Subscribe(func(m map[string]*models.Module) { changed <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ws.Start(ctx)

	testutil.WriteFile(t, root, "external.js", "1")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case m := <-changed:
			if _, ok := m["/external.js"]; ok {
				return
			}
		case <-deadline:
			t.Fatal("external change not observed")
		}
	}
}

func TestSuggest(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"src/main.go":   "package main",
		"src/server.go": "package main",
	})
	ws, err := New(Options{Root: root}, testutil.QuietLogger())
	require.NoError(t, err)
	defer ws.Close()

	near, ok := ws.Suggest("/src/mian.go")
	assert.True(t, ok)
	assert.Equal(t, "/src/main.go", near)

	_, ok = ws.Suggest("/docs/readme.md")
	assert.False(t, ok)
}
