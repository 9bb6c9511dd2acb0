package docsync

import (
	"testing"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost mimics a host application's module map with change notifications.
type fakeHost struct {
	modules      map[string]*models.Module
	listener     func(map[string]*models.Module)
	unsubscribed bool
}

func (h *fakeHost) accessors() Accessors {
	return Accessors{
		ModulesByPath: func() map[string]*models.Module { return h.modules },
		SubscribeModulePaths: func(cb func(map[string]*models.Module)) func() {
			h.listener = cb
			return func() { h.unsubscribed = true }
		},
	}
}

func (h *fakeHost) set(modules map[string]*models.Module) {
	h.modules = modules
	if h.listener != nil && !h.unsubscribed {
		h.listener(modules)
	}
}

func TestInitializeSnapshotsModules(t *testing.T) {
	host := &fakeHost{modules: map[string]*models.Module{
		"/b.js": {Path: "/b.js", Code: "b"},
		"/a.js": {Path: "/a.js", Code: "a"},
	}}
	layer := New(testutil.QuietLogger())

	require.NoError(t, layer.Initialize(host.accessors()))
	assert.Equal(t, []string{"/a.js", "/b.js"}, layer.Paths())

	m, ok := layer.Module("/a.js")
	require.True(t, ok)
	assert.Equal(t, "a", m.Code)

	err := layer.Initialize(host.accessors())
	assert.True(t, errors.Is(err, errors.ErrCodeAlreadyInitialized))
}

func TestInitializeRequiresAccessor(t *testing.T) {
	err := New(testutil.QuietLogger()).Initialize(Accessors{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestHostChangesReachSubscribers(t *testing.T) {
	host := &fakeHost{modules: map[string]*models.Module{
		"/a.js": {Path: "/a.js", Code: "a"},
		"/b.js": {Path: "/b.js", Code: "b"},
	}}
	layer := New(testutil.QuietLogger())
	require.NoError(t, layer.Initialize(host.accessors()))

	ch := layer.Subscribe()
	defer layer.Unsubscribe(ch)

	host.set(map[string]*models.Module{
		"/a.js": {Path: "/a.js", Code: "a2"},
		"/c.js": {Path: "/c.js", Code: "c"},
	})

	u := <-ch
	assert.Equal(t, UpdateModules, u.Type)
	assert.Equal(t, []string{"/a.js", "/c.js"}, u.Paths)
	assert.Equal(t, []string{"/c.js"}, u.Added)
	assert.Equal(t, []string{"/b.js"}, u.Removed)
	assert.Equal(t, []string{"/a.js"}, u.Changed)

	// Identical content produces no update.
	host.set(map[string]*models.Module{
		"/a.js": {Path: "/a.js", Code: "a2"},
		"/c.js": {Path: "/c.js", Code: "c"},
	})
	assert.Len(t, ch, 0)
}

func TestPut(t *testing.T) {
	layer := New(testutil.QuietLogger())
	ch := layer.Subscribe()
	defer layer.Unsubscribe(ch)

	layer.Put(&models.Module{Path: "/new.js", Code: "x"})
	u := <-ch
	assert.Equal(t, []string{"/new.js"}, u.Added)
	layer.Put(nil)
	assert.Len(t, ch, 0)
}

func TestDisposeClosesEverything(t *testing.T) {
	host := &fakeHost{modules: map[string]*models.Module{}}
	layer := New(testutil.QuietLogger())
	require.NoError(t, layer.Initialize(host.accessors()))

	ch := layer.Subscribe()
	layer.Dispose()
	layer.Dispose()

	u, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, UpdateDisposed, u.Type)
	_, ok = <-ch
	assert.False(t, ok)

	assert.True(t, host.unsubscribed)
	assert.True(t, layer.Disposed())

	// Updates after disposal are ignored and new subscriptions are closed.
	layer.Replace(map[string]*models.Module{"/x.js": {Path: "/x.js"}})
	assert.Empty(t, layer.Paths())
	_, ok = <-layer.Subscribe()
	assert.False(t, ok)

	// Unsubscribing an already-closed channel is safe.
	assert.NotPanics(t, func() { layer.Unsubscribe(ch) })
}
