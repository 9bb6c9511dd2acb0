// Package assets waits for resources that must exist before the editing
// surface is built, such as the font the surface renders with.
package assets

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/editsync/errors"
	"github.com/sirupsen/logrus"
)

// Loader makes a resource available. Load blocks until the resource is ready,
// it fails, or ctx is done.
type Loader interface {
	Load(ctx context.Context) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) error

func (f LoaderFunc) Load(ctx context.Context) error { return f(ctx) }

// Nop is a Loader with nothing to wait for.
var Nop Loader = LoaderFunc(func(context.Context) error { return nil })

// FileWaiter waits until a file exists.
type FileWaiter struct {
	path    string
	timeout time.Duration
	logger  *logrus.Entry
}

// NewFileWaiter waits for path. A zero timeout waits until ctx is done.
func NewFileWaiter(path string, timeout time.Duration, logger *logrus.Entry) *FileWaiter {
	return &FileWaiter{path: path, timeout: timeout, logger: logger}
}

// Load returns once the file exists. The parent directory must exist.
func (w *FileWaiter) Load(ctx context.Context) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if exists(w.path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.ResourceUnavailable(w.path, err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return errors.ResourceUnavailable(w.path, err)
	}

	// The file may have appeared between the first check and Add.
	if exists(w.path) {
		return nil
	}

	w.logger.WithField("path", w.path).Info("Waiting for resource")
	target := filepath.Clean(w.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.ResourceUnavailable(w.path, os.ErrClosed)
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && exists(w.path) {
				w.logger.WithField("path", w.path).Debug("Resource available")
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.ResourceUnavailable(w.path, os.ErrClosed)
			}
			w.logger.WithError(err).Warn("Resource watcher error")
		case <-ctx.Done():
			return errors.ResourceUnavailable(w.path, ctx.Err())
		}
	}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
