package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/internal/daemon/server"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/surface/memory"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDaemon serves a ready in-memory session on a temp socket.
func startDaemon(t *testing.T) (string, *memory.Surface) {
	t.Helper()
	surf := memory.New(memory.Hooks{})
	sess := editorsync.New(editorsync.Config{}, surf.Factory(), editorsync.WithLogger(testutil.QuietLogger()))
	t.Cleanup(func() { _ = sess.Unmount() })

	mods := map[string]*models.Module{"/main.go": {ID: "/main.go", Path: "/main.go", Code: "package main"}}
	require.NoError(t, sess.Initialize(context.Background(), editorsync.Options{
		ModulesByPath: func() map[string]*models.Module { return mods },
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	sock := filepath.Join(testutil.ShortTempDir(t), "d.sock")

	srv := server.New(testutil.QuietLogger())
	srv.SetSession(sess)
	go srv.ListenAndServe(sock)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	require.Eventually(t, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return sock, surf
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "stop", "status", "modules", "apply", "run", "callback", "vim", "config", "paths", "logs", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestConfigSchema(t *testing.T) {
	out, err := run(t, "", "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "overlap_policy")
}

func TestApplyRejectsInvalidBatch(t *testing.T) {
	_, err := run(t, "not json", "apply", "--socket", "/nonexistent.sock")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestClientCommandsWithoutDaemon(t *testing.T) {
	_, err := run(t, "", "status", "--socket", filepath.Join(t.TempDir(), "none.sock"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))
}

func TestClientCommandsAgainstDaemon(t *testing.T) {
	sock, surf := startDaemon(t)

	out, err := run(t, `{"/main.go":[12,"\n"]}`, "apply", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, "1 module")
	assert.Equal(t, "package main\n", surf.Text("/main.go"))

	_, err = run(t, "", "run", "--socket", sock, "set", "number")
	require.NoError(t, err)
	assert.Equal(t, []string{"set number"}, surf.Commands())

	out, err = run(t, "", "modules", "--socket", sock)
	require.NoError(t, err)
	assert.Equal(t, "/main.go\n", out)

	out, err = run(t, "", "status", "--json", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, `"bootstrap": "ready"`)

	out, err = run(t, "", "callback", "resolve", "missing", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending callback")

	_, err = run(t, "", "vim", "enable", "--socket", sock)
	require.NoError(t, err)
}

func TestPrintLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, printLastLines(&out, path, 2))
	assert.Equal(t, "b\nc\n", out.String())

	out.Reset()
	require.NoError(t, printLastLines(&out, path, 0))
	assert.Equal(t, "a\nb\nc\n", out.String())
}

func TestResolvePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "e.sock"), resolvePath("", "~/e.sock", "/tmp/x.sock"))
	assert.Equal(t, "/tmp/x.sock", resolvePath("", "/tmp/x.sock"))
	assert.Equal(t, "", resolvePath("", ""))
}
