package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/editsync/config"
	"github.com/grovetools/editsync/logging"
	"github.com/sirupsen/logrus"
)

// ConfigWatcher reloads editsync.yml when it changes on disk and hands the
// new configuration to onReload. Invalid edits are logged and skipped.
type ConfigWatcher struct {
	watcher      *fsnotify.Watcher
	startDir     string
	files        map[string]bool   // config files whose changes trigger a reload
	targetToLink map[string]string // symlink target -> link path
	debounce     time.Duration
	logger       *logrus.Entry
	onReload     func(cfg *config.Config)

	mu    sync.Mutex
	timer *time.Timer
}

// NewConfigWatcher watches the layered config files found from startDir:
// the global config directory and the project directory. Symlinked config
// files have their target directories watched too, since fsnotify does not
// follow links.
func NewConfigWatcher(startDir string, debounce time.Duration, onReload func(*config.Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	w := &ConfigWatcher{
		watcher:      watcher,
		startDir:     startDir,
		files:        make(map[string]bool),
		targetToLink: make(map[string]string),
		debounce:     debounce,
		logger:       logging.NewLogger("config-watcher"),
		onReload:     onReload,
	}

	watched := make(map[string]bool)
	watchDir := func(dir string) {
		if watched[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			w.logger.WithError(err).WithField("dir", dir).Debug("Not watching config directory")
			return
		}
		watched[dir] = true
	}

	for _, file := range config.LayerFiles(startDir) {
		w.files[file] = true
		watchDir(filepath.Dir(file))

		info, err := os.Lstat(file)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		target, err := filepath.EvalSymlinks(file)
		if err != nil {
			w.logger.WithError(err).Warnf("Failed to resolve symlink %s", file)
			continue
		}
		w.targetToLink[target] = file
		watchDir(filepath.Dir(target))
	}

	if len(watched) == 0 {
		watcher.Close()
		return nil, os.ErrNotExist
	}
	return w, nil
}

// Start processes file events until ctx is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := event.Name
			if link, ok := w.targetToLink[name]; ok {
				name = link
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !w.files[name] {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", name, event.Op)
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.stop()
			w.watcher.Close()
			return
		}
	}
}

// schedule coalesces bursts of writes into one reload.
func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *ConfigWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := config.LoadOrDefault(w.startDir)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring invalid configuration change")
		return
	}
	w.logger.Info("Configuration reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	w.stop()
	return w.watcher.Close()
}
