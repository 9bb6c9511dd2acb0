// Package watch exposes a workspace directory as a path-keyed module map
// and keeps it current with fsnotify.
package watch

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/util/pathutil"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// maxModuleSize is the largest file loaded as text; bigger files are listed
// as binary modules without content.
const maxModuleSize = 1 << 20

// Options configures a Workspace.
type Options struct {
	Root     string
	Exclude  []string
	Debounce time.Duration
}

// Workspace is a module map backed by a directory.
type Workspace struct {
	root     string
	matcher  *patternmatcher.PatternMatcher
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *logrus.Entry

	mu          sync.RWMutex
	modules     map[string]*models.Module
	subscribers map[int]func(map[string]*models.Module)
	nextSub     int

	timerMu sync.Mutex
	timer   *time.Timer
}

// New scans the workspace and starts watching its directories.
func New(opts Options, logger *logrus.Entry) (*Workspace, error) {
	root, err := pathutil.Resolve(opts.Root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid workspace root")
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "workspace root must be a directory").
			WithDetail("root", root)
	}

	matcher, err := patternmatcher.New(opts.Exclude)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid exclude pattern")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	w := &Workspace{
		root:        root,
		matcher:     matcher,
		debounce:    debounce,
		watcher:     watcher,
		logger:      logger,
		subscribers: make(map[int]func(map[string]*models.Module)),
	}

	modules, dirs, err := w.scan()
	if err != nil {
		watcher.Close()
		return nil, err
	}
	w.modules = modules
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.WithError(err).Warnf("Failed to watch %s", dir)
		}
	}

	logger.WithFields(logrus.Fields{
		"root":    root,
		"modules": len(modules),
	}).Debug("Workspace scanned")
	return w, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// excluded reports whether a slash-separated relative path is excluded.
func (w *Workspace) excluded(rel string) bool {
	ok, err := w.matcher.MatchesOrParentMatches(rel)
	return err == nil && ok
}

func (w *Workspace) scan() (map[string]*models.Module, []string, error) {
	modules := make(map[string]*models.Module)
	var dirs []string

	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.WithError(err).Debugf("Skipping %s", p)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.excluded(rel) {
				return filepath.SkipDir
			}
			dirs = append(dirs, p)
			return nil
		}
		if !d.Type().IsRegular() || w.excluded(rel) {
			return nil
		}

		if m := loadModule(p, "/"+rel); m != nil {
			modules[m.Path] = m
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workspace").
			WithDetail("root", w.root)
	}
	return modules, dirs, nil
}

func loadModule(file, modulePath string) *models.Module {
	info, err := os.Stat(file)
	if err != nil {
		return nil
	}

	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(modulePath)).String()
	m := &models.Module{
		ID:      id,
		ShortID: id[:8],
		Title:   path.Base(modulePath),
		Path:    modulePath,
	}

	if info.Size() > maxModuleSize {
		m.IsBinary = true
		return m
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		m.IsBinary = true
		return m
	}
	m.Code = string(data)
	return m
}

// Snapshot returns the current module map. The map is not shared with the
// workspace and may be modified by the caller; the modules are shared.
func (w *Workspace) Snapshot() map[string]*models.Module {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]*models.Module, len(w.modules))
	for p, m := range w.modules {
		out[p] = m
	}
	return out
}

// Suggest returns the module path closest to path by edit distance, if
// one is within a third of the path's length.
func (w *Workspace) Suggest(path string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	best, bestDist := "", len(path)/3+1
	for p := range w.modules {
		if d := levenshtein.ComputeDistance(p, path); d < bestDist || (d == bestDist && best != "" && p < best) {
			best, bestDist = p, d
		}
	}
	return best, best != ""
}

// Subscribe registers cb for module map changes.
func (w *Workspace) Subscribe(cb func(map[string]*models.Module)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subscribers[id] = cb
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subscribers, id)
		w.mu.Unlock()
	}
}

// Resolve maps a module path to a file inside the workspace.
func (w *Workspace) Resolve(modulePath string) (string, error) {
	if !strings.HasPrefix(modulePath, "/") {
		return "", errors.New(errors.ErrCodeInvalidInput, "module path must be absolute").
			WithDetail("path", modulePath)
	}
	file := filepath.Join(w.root, filepath.FromSlash(path.Clean(modulePath)))
	if file == w.root || !pathutil.Within(w.root, file) {
		return "", errors.New(errors.ErrCodeInvalidInput, "module path escapes the workspace").
			WithDetail("path", modulePath)
	}
	return file, nil
}

// Write stores code for modulePath on disk and updates the module map.
func (w *Workspace) Write(modulePath, code string) error {
	file, err := w.Resolve(modulePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create module directory")
	}
	if err := os.WriteFile(file, []byte(code), 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write module").
			WithDetail("path", modulePath)
	}
	w.Refresh()
	return nil
}

// Refresh rescans the workspace and notifies subscribers.
func (w *Workspace) Refresh() {
	modules, dirs, err := w.scan()
	if err != nil {
		w.logger.WithError(err).Error("Workspace rescan failed")
		return
	}
	for _, dir := range dirs {
		// Adding an already watched directory is a no-op.
		_ = w.watcher.Add(dir)
	}

	w.mu.Lock()
	w.modules = modules
	subs := make([]func(map[string]*models.Module), 0, len(w.subscribers))
	for _, cb := range w.subscribers {
		subs = append(subs, cb)
	}
	w.mu.Unlock()

	for _, cb := range subs {
		snapshot := make(map[string]*models.Module, len(modules))
		for p, m := range modules {
			snapshot[p] = m
		}
		cb(snapshot)
	}
}

// Start processes file system events until ctx is done. Bursts of events are
// coalesced into one rescan after the debounce interval.
func (w *Workspace) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if rel, err := filepath.Rel(w.root, event.Name); err == nil && w.excluded(filepath.ToSlash(rel)) {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.stopTimer()
			return
		}
	}
}

func (w *Workspace) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.timerMu.Lock()
		w.timer = nil
		w.timerMu.Unlock()
		w.Refresh()
	})
}

func (w *Workspace) stopTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Close stops watching.
func (w *Workspace) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}
