// Package docsync is the document-access layer between a host's module map
// and the editing surface. It holds the latest snapshot of modules and fans
// out path-set changes to subscribers.
package docsync

import (
	"sort"
	"sync"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/logging"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Layer is safe for concurrent use.
type Layer struct {
	mu          sync.RWMutex
	modules     map[string]*models.Module
	subscribers map[chan Update]struct{}
	unsubscribe func()
	initialized bool
	disposed    bool
	logger      *logrus.Entry
}

// New creates an empty layer.
func New(logger *logrus.Entry) *Layer {
	if logger == nil {
		logger = logging.NewLogger("docsync")
	}
	return &Layer{
		modules:     make(map[string]*models.Module),
		subscribers: make(map[chan Update]struct{}),
		logger:      logger,
	}
}

// Initialize reads the host's module map and subscribes to its changes.
// It may only be called once.
func (l *Layer) Initialize(acc Accessors) error {
	if acc.ModulesByPath == nil {
		return errors.New(errors.ErrCodeInvalidInput, "ModulesByPath accessor is required")
	}

	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return errors.SessionDisposed("docsync.Initialize")
	}
	if l.initialized {
		l.mu.Unlock()
		return errors.AlreadyInitialized().WithDetail("component", "docsync")
	}
	l.initialized = true
	l.mu.Unlock()

	l.Replace(acc.ModulesByPath())

	if acc.SubscribeModulePaths != nil {
		unsubscribe := acc.SubscribeModulePaths(l.Replace)
		l.mu.Lock()
		if l.disposed {
			l.mu.Unlock()
			if unsubscribe != nil {
				unsubscribe()
			}
			return nil
		}
		l.unsubscribe = unsubscribe
		l.mu.Unlock()
	}

	l.logger.WithField("modules", len(l.Paths())).Debug("Document layer initialized")
	return nil
}

// Replace swaps in a new module map and notifies subscribers when the path
// set or any module content changed.
func (l *Layer) Replace(modules map[string]*models.Module) {
	next := make(map[string]*models.Module, len(modules))
	for p, m := range modules {
		if m != nil {
			next[p] = m
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return
	}

	var added, removed, changed []string
	for p, m := range next {
		prev, ok := l.modules[p]
		switch {
		case !ok:
			added = append(added, p)
		case prev.Code != m.Code || prev.IsBinary != m.IsBinary:
			changed = append(changed, p)
		}
	}
	for p := range l.modules {
		if _, ok := next[p]; !ok {
			removed = append(removed, p)
		}
	}
	l.modules = next

	if len(added)+len(removed)+len(changed) == 0 {
		return
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)

	l.broadcast(Update{
		Type:    UpdateModules,
		Paths:   models.ModulePaths(next),
		Added:   added,
		Removed: removed,
		Changed: changed,
	})
}

// Put stores a single module.
func (l *Layer) Put(module *models.Module) {
	if module == nil {
		return
	}
	l.mu.RLock()
	next := make(map[string]*models.Module, len(l.modules)+1)
	for p, m := range l.modules {
		next[p] = m
	}
	l.mu.RUnlock()

	next[module.Path] = module
	l.Replace(next)
}

// broadcast must be called with l.mu held.
func (l *Layer) broadcast(u Update) {
	for ch := range l.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send so a slow subscriber cannot stall the host.
			l.logger.WithField("type", u.Type).Debug("Dropped module update for slow subscriber")
		}
	}
}

// Module returns the module stored under path.
func (l *Layer) Module(path string) (*models.Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[path]
	return m, ok
}

// Paths returns the current sorted path set.
func (l *Layer) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return models.ModulePaths(l.modules)
}

// Subscribe creates a buffered subscription channel. Updates are dropped for
// a subscriber whose buffer is full; every Update carries the full path set
// so the next one resynchronizes it.
func (l *Layer) Subscribe() chan Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan Update, 100)
	if l.disposed {
		close(ch)
		return ch
	}
	l.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (l *Layer) Unsubscribe(ch chan Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subscribers[ch]; !ok {
		return
	}
	delete(l.subscribers, ch)
	close(ch)
}

// Dispose cancels the host subscription and closes every subscriber.
// It is idempotent.
func (l *Layer) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil

	for ch := range l.subscribers {
		select {
		case ch <- Update{Type: UpdateDisposed}:
		default:
		}
		close(ch)
	}
	l.subscribers = make(map[chan Update]struct{})
	l.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	l.logger.Debug("Document layer disposed")
}

// Disposed reports whether Dispose was called.
func (l *Layer) Disposed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.disposed
}
