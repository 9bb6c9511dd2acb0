package daemon

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/internal/daemon/server"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/ot"
	"github.com/grovetools/editsync/pkg/surface/memory"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*RemoteClient, *editorsync.Session, *memory.Surface) {
	t.Helper()
	surf := memory.New(memory.Hooks{})
	sess := editorsync.New(editorsync.Config{}, surf.Factory(), editorsync.WithLogger(testutil.QuietLogger()))
	t.Cleanup(func() { _ = sess.Unmount() })

	mods := map[string]*models.Module{"/a.js": {ID: "/a.js", Path: "/a.js", Code: "abc"}}
	require.NoError(t, sess.Initialize(context.Background(), editorsync.Options{
		ModulesByPath: func() map[string]*models.Module { return mods },
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	srv := server.New(testutil.QuietLogger())
	srv.SetSession(sess)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c := newHTTPClient(ts.URL, ts.Client())
	t.Cleanup(func() { c.Close() })
	return c, sess, surf
}

func TestRemoteClientRoundTrip(t *testing.T) {
	c, _, surf := newTestClient(t)
	ctx := context.Background()

	assert.True(t, c.IsRunning())

	status, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, memory.RuntimeName, status.Runtime)

	paths, err := c.Modules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.js"}, paths)

	require.NoError(t, c.ApplyOperations(ctx, models.OperationBatch{
		"/a.js": {ot.Retain(3), ot.Insert("d")},
	}))
	assert.Equal(t, "abcd", surf.Text("/a.js"))

	require.NoError(t, c.RunCommand(ctx, "write"))
	assert.Equal(t, []string{"write"}, surf.Commands())
}

func TestRemoteClientDecodesSessionErrors(t *testing.T) {
	c, _, _ := newTestClient(t)

	err := c.ApplyOperations(context.Background(), models.OperationBatch{"a.js": {ot.Insert("x")}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidOperation))

	err = c.RunCommand(context.Background(), "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestRemoteClientCallbacks(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	ids, err := c.Callbacks(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	fired, err := c.ResolveCallback(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, fired)

	fired, err = c.RejectCallback(ctx, "missing", "nope")
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestRemoteClientStream(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := c.StreamModules(ctx)
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, "initial", u.UpdateType)
		assert.Equal(t, []string{"/a.js"}, u.Paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial update")
	}
}

func TestConnectWithoutDaemon(t *testing.T) {
	_, err := Connect(filepath.Join(t.TempDir(), "missing.sock"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))
}
