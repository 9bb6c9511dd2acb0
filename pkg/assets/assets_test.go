package assets

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExistingFileLoadsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dm.ttf")
	require.NoError(t, os.WriteFile(path, []byte("font"), 0644))

	assert.NoError(t, NewFileWaiter(path, 0, testutil.QuietLogger()).Load(context.Background()))
}

func TestWaitsForFileCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dm.ttf")
	waiter := NewFileWaiter(path, 5*time.Second, testutil.QuietLogger())

	done := make(chan error, 1)
	go func() { done <- waiter.Load(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("font"), 0644))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not observe the file")
	}
}

func TestTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.ttf")

	err := NewFileWaiter(path, 30*time.Millisecond, testutil.QuietLogger()).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeResourceUnavailable))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dm.ttf")

	err := NewFileWaiter(path, 0, testutil.QuietLogger()).Load(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeResourceUnavailable))
}

func TestLoaderFunc(t *testing.T) {
	assert.NoError(t, Nop.Load(context.Background()))

	cause := stderrors.New("no font")
	var l Loader = LoaderFunc(func(context.Context) error { return cause })
	assert.Same(t, cause, l.Load(context.Background()))
}
