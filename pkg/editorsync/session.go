// Package editorsync is the session facade between a host application and
// an embedded editing surface. It builds the surface exactly once, queues
// calls made before the surface is ready, serializes operation batches and
// correlates save requests with their completion.
package editorsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/logging"
	"github.com/grovetools/editsync/pkg/assets"
	"github.com/grovetools/editsync/pkg/bootstrap"
	"github.com/grovetools/editsync/pkg/callbacks"
	"github.com/grovetools/editsync/pkg/docsync"
	"github.com/grovetools/editsync/pkg/extensions"
	"github.com/grovetools/editsync/pkg/gate"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/surface"
	"github.com/sirupsen/logrus"
)

// pendingCall is a forwarding call waiting for the surface.
type pendingCall struct {
	name string
	fn   func(surface.Surface) error
}

// Session is one editor session. It is safe for concurrent use.
type Session struct {
	cfg      Config
	factory  surface.Factory
	logger   *logrus.Entry
	loader   assets.Loader
	extStore extensions.Store
	registry *callbacks.Registry

	seq    *bootstrap.Sequencer
	gate   *gate.Gate
	docs   *docsync.Layer
	toggle *extensions.Toggle

	editor    *Part
	menubar   *Part
	statusbar *Part

	// fwdMu serializes forwarding calls to the surface so they arrive in
	// call order, queued calls first.
	fwdMu sync.Mutex

	liveCh    chan struct{}
	liveOnce  sync.Once
	closeOnce sync.Once

	mu           sync.Mutex
	opts         Options
	initialized  bool
	live         bool
	disposed     bool
	failed       error
	mailbox      []pendingCall
	overlays     map[string]models.Overlays
	activePath   string
	activeModule *models.Module
	readOnly     bool
	width        int
	height       int
	resolver     CustomEditorResolver
	customEditor CustomEditor
	vimEnabled   *bool
	cursor       *models.Position
	docUpdates   chan docsync.Update
}

// New creates a session that will build its surface with factory.
func New(cfg Config, factory surface.Factory, opts ...Option) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:      cfg,
		factory:  factory,
		gate:     gate.New(cfg.OverlapPolicy),
		liveCh:   make(chan struct{}),
		overlays: make(map[string]models.Overlays),
		readOnly: cfg.ReadOnly,
		width:    cfg.Width,
		height:   cfg.Height,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewLogger("session")
	}
	if s.loader == nil {
		s.loader = assets.Nop
	}
	if s.registry == nil {
		s.registry = callbacks.New()
	}
	if s.extStore != nil {
		s.toggle = extensions.NewToggle(s.extStore, s.logger.WithField("part", "extensions"))
	}

	s.seq = bootstrap.New(s.logger.WithField("part", "bootstrap"))
	s.docs = docsync.New(s.logger.WithField("part", "docsync"))

	s.editor = newRenderedPart("editor", s.renderEditor)
	s.menubar = newRenderedPart("menubar", s.renderMenubar)
	s.statusbar = newRenderedPart("statusbar", s.renderStatusbar)
	return s
}

// Initialize starts the one-time bootstrap: the document layer is seeded
// from the host accessors, the resource loader is awaited and the surface
// is constructed. It returns once the bootstrap has started; use
// EditorElement or Wait to observe readiness. A second call returns
// ALREADY_INITIALIZED.
func (s *Session) Initialize(ctx context.Context, opts Options) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errors.SessionDisposed("Initialize")
	}
	if s.initialized {
		s.mu.Unlock()
		return errors.AlreadyInitialized()
	}
	s.initialized = true
	s.opts = opts
	s.mu.Unlock()

	s.seq.Then(s.onSettled)
	return s.seq.Start(ctx, s.build)
}

func (s *Session) build(ctx context.Context) (*surface.Handle, error) {
	s.mu.Lock()
	opts := s.opts
	width, height, readOnly := s.width, s.height, s.readOnly
	s.mu.Unlock()

	modulesByPath := opts.ModulesByPath
	if modulesByPath == nil {
		modulesByPath = func() map[string]*models.Module { return nil }
	}
	if err := s.docs.Initialize(docsync.Accessors{
		ModulesByPath:        modulesByPath,
		SubscribeModulePaths: opts.SubscribeModulePaths,
	}); err != nil {
		return nil, errors.BootstrapFailed("document layer", err)
	}
	// Later path changes are streamed; the snapshot is forwarded on go-live.
	updates := s.docs.Subscribe()
	s.mu.Lock()
	s.docUpdates = updates
	s.mu.Unlock()

	if err := s.loader.Load(ctx); err != nil {
		return nil, errors.BootstrapFailed("resource load", err)
	}

	if s.factory == nil {
		return nil, errors.BootstrapFailed("surface construction", fmt.Errorf("no surface factory"))
	}
	handle, err := s.factory(ctx, surface.BuildConfig{
		Width:     width,
		Height:    height,
		ReadOnly:  readOnly,
		Documents: s.docs,
		Logger:    s.logger.WithField("part", "surface"),
	})
	if err != nil {
		return nil, errors.BootstrapFailed("surface construction", err)
	}
	return handle, nil
}

func (s *Session) onSettled(handle *surface.Handle, err error) {
	if err != nil {
		s.mu.Lock()
		s.failed = err
		dropped := len(s.mailbox)
		s.mailbox = nil
		s.mu.Unlock()

		if dropped > 0 {
			s.logger.WithField("dropped", dropped).Warn("Dropping queued editor calls after bootstrap failure")
		}
		s.markLive()
		return
	}

	s.mu.Lock()
	disposed := s.disposed
	updates := s.docUpdates
	s.mu.Unlock()
	if disposed {
		s.closeSurface(handle)
		return
	}

	handle.Surface.SetListener(sessionListener{s})
	s.goLive(handle)

	if updates != nil {
		go s.streamModules(updates)
	}
}

// goLive forwards the module snapshot and the queued calls, then switches
// the session to direct forwarding.
func (s *Session) goLive(handle *surface.Handle) {
	s.fwdMu.Lock()
	defer s.fwdMu.Unlock()

	_ = s.forward(handle, "SyncModules", func(sf surface.Surface) error {
		return sf.SyncModules(s.docs.Paths())
	})

	for {
		s.mu.Lock()
		if s.disposed {
			s.mailbox = nil
			s.mu.Unlock()
			s.markLive()
			return
		}
		if len(s.mailbox) == 0 {
			s.live = true
			s.mu.Unlock()
			s.markLive()
			return
		}
		queued := s.mailbox
		s.mailbox = nil
		s.mu.Unlock()

		s.logger.WithField("calls", len(queued)).Debug("Draining queued editor calls")
		for _, c := range queued {
			_ = s.forward(handle, c.name, c.fn)
		}
	}
}

func (s *Session) markLive() {
	s.liveOnce.Do(func() { close(s.liveCh) })
}

func (s *Session) streamModules(updates chan docsync.Update) {
	for u := range updates {
		if u.Type == docsync.UpdateDisposed {
			return
		}
		if len(u.Added)+len(u.Removed) == 0 {
			continue
		}
		paths := u.Paths
		if err := s.dispatch("SyncModules", nil, func(sf surface.Surface) error {
			return sf.SyncModules(paths)
		}); err != nil && !errors.Is(err, errors.ErrCodeSessionDisposed) {
			s.logger.WithError(err).Warn("Failed to sync module paths")
		}
	}
}

// admitLocked reports why a call named name cannot be forwarded or queued
// right now. s.mu must be held.
func (s *Session) admitLocked(name string) error {
	if s.disposed {
		return errors.SessionDisposed(name)
	}
	if s.failed != nil {
		return s.failed
	}
	if !s.live && len(s.mailbox) >= s.cfg.MailboxSize {
		return errors.MailboxFull(name, s.cfg.MailboxSize)
	}
	return nil
}

// dispatch forwards fn to the live surface, or queues it until the surface
// is ready. commit, when set, records the call's effect on the session
// under s.mu and runs only once the call is accepted.
func (s *Session) dispatch(name string, commit func(), fn func(surface.Surface) error) error {
	s.mu.Lock()
	if err := s.admitLocked(name); err != nil {
		s.mu.Unlock()
		return err
	}
	if commit != nil {
		commit()
	}
	if !s.live {
		s.mailbox = append(s.mailbox, pendingCall{name: name, fn: fn})
		depth := len(s.mailbox)
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"call": name, "depth": depth}).Debug("Queued editor call until ready")
		return nil
	}
	s.mu.Unlock()

	handle, _ := s.seq.Handle()
	s.fwdMu.Lock()
	defer s.fwdMu.Unlock()
	return s.forward(handle, name, fn)
}

func (s *Session) forward(handle *surface.Handle, name string, fn func(surface.Surface) error) error {
	if err := fn(handle.Surface); err != nil {
		s.logger.WithError(err).WithField("call", name).Warn("Editor call failed")
		return errors.SurfaceFailed(name, err)
	}
	return nil
}

// awaitLive blocks until queued calls have been forwarded or the bootstrap
// failed.
func (s *Session) awaitLive(ctx context.Context, op string) (*surface.Handle, error) {
	s.mu.Lock()
	initialized, disposed := s.initialized, s.disposed
	s.mu.Unlock()
	if disposed {
		return nil, errors.SessionDisposed(op)
	}
	if !initialized {
		return nil, errors.NotInitialized(op)
	}

	select {
	case <-s.liveCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, errors.SessionDisposed(op)
	}
	if s.failed != nil {
		return nil, s.failed
	}
	handle, _ := s.seq.Handle()
	return handle, nil
}

// Wait blocks until the surface is ready and every queued call has been
// forwarded.
func (s *Session) Wait(ctx context.Context) error {
	_, err := s.awaitLive(ctx, "Wait")
	return err
}

// EditorElement returns the editor container. The part is usable
// immediately and shows the live surface once the bootstrap settles.
// resolver selects custom editors for OpenModule.
func (s *Session) EditorElement(resolver CustomEditorResolver) *Part {
	s.mu.Lock()
	s.resolver = resolver
	s.mu.Unlock()

	s.seq.Then(func(handle *surface.Handle, err error) {
		if err != nil {
			return
		}
		s.logger.WithField("runtime", handle.Runtime.Name).Debug("Editor element attached to surface")
	})
	return s.editor
}

// MountMenubar attaches the menubar under host once the surface is ready.
func (s *Session) MountMenubar(host *Part) error {
	if host == nil {
		return errors.New(errors.ErrCodeInvalidInput, "menubar host is required")
	}
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return errors.SessionDisposed("MountMenubar")
	}

	s.seq.Then(func(_ *surface.Handle, err error) {
		if err != nil {
			s.logger.WithError(err).Debug("Not mounting menubar, editor failed to start")
			return
		}
		if err := host.Append(s.menubar); err != nil {
			s.logger.WithError(err).Warn("Failed to mount menubar")
		}
	})
	return nil
}

// StatusbarElement returns the status bar part.
func (s *Session) StatusbarElement() *Part {
	return s.statusbar
}

// Unmount disposes the document layer, closes the surface and fails every
// pending callback. Later calls return SESSION_DISPOSED. It is idempotent.
func (s *Session) Unmount() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	dropped := len(s.mailbox)
	s.mailbox = nil
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.WithField("dropped", dropped).Debug("Dropping queued editor calls on unmount")
	}

	s.docs.Dispose()
	s.menubar.Detach()
	s.markLive()

	if handle, ready := s.seq.Handle(); ready {
		s.closeSurface(handle)
	}

	for _, id := range s.registry.IDs() {
		s.registry.CallError(id, "editor session was closed")
	}

	s.logger.Info("Editor session unmounted")
	return nil
}

// closeSurface closes handle's surface once, whether Unmount or the
// bootstrap completion gets there first.
func (s *Session) closeSurface(handle *surface.Handle) {
	s.closeOnce.Do(func() {
		s.fwdMu.Lock()
		defer s.fwdMu.Unlock()
		handle.Surface.SetListener(nil)
		if err := handle.Surface.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close editing surface")
		}
	})
}

// RunCommand runs command in the surface once it is ready.
func (s *Session) RunCommand(ctx context.Context, command string) error {
	if command == "" {
		return errors.New(errors.ErrCodeInvalidInput, "command cannot be empty")
	}
	handle, err := s.awaitLive(ctx, "RunCommand")
	if err != nil {
		return err
	}
	if err := handle.Surface.RunCommand(ctx, command); err != nil {
		return errors.SurfaceFailed("RunCommand", err).WithDetail("command", command)
	}
	return nil
}

// SendKeys forwards keystrokes to runtimes that take raw input. Runtimes
// without key input ignore them.
func (s *Session) SendKeys(keys string) error {
	if keys == "" {
		return nil
	}
	return s.dispatch("SendKeys", nil, func(sf surface.Surface) error {
		if in, ok := sf.(surface.KeyInput); ok {
			return in.Input(keys)
		}
		return nil
	})
}

// SetVimExtensionEnabled enables or disables the vim extension. Disabling
// persists a default disabled record when none exists; an existing record
// is left untouched. The runtime is updated once it is ready.
func (s *Session) SetVimExtensionEnabled(ctx context.Context, enabled bool) error {
	const op = "SetVimExtensionEnabled"
	s.mu.Lock()
	err := s.admitLocked(op)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if !enabled && s.toggle != nil {
		if _, err := s.toggle.PrepareDisable(extensions.Vim); err != nil {
			return err
		}
	}

	mirrorCtx := context.WithoutCancel(ctx)
	commit := func() { s.vimEnabled = &enabled }
	return s.dispatch(op, commit, func(sf surface.Surface) error {
		if enabled {
			return sf.EnableExtension(mirrorCtx, string(extensions.Vim))
		}
		return sf.DisableExtension(mirrorCtx, string(extensions.Vim))
	})
}

// UpdateOptions applies editor options.
func (s *Session) UpdateOptions(opts EditorOptions) error {
	return s.SetReadOnly(opts.ReadOnly)
}

// SetReadOnly toggles read-only mode.
func (s *Session) SetReadOnly(readOnly bool) error {
	commit := func() { s.readOnly = readOnly }
	return s.dispatch("SetReadOnly", commit, func(sf surface.Surface) error {
		return sf.SetReadOnly(readOnly)
	})
}

// UpdateUserSelections replaces every remote user selection.
func (s *Session) UpdateUserSelections(selections []models.EditorSelection) error {
	selections = append([]models.EditorSelection(nil), selections...)
	return s.dispatch("UpdateUserSelections", nil, func(sf surface.Surface) error {
		return sf.UpdateSelections(selections)
	})
}

// ChangeModule makes module active and replaces its diagnostics. Passing no
// errors and no corrections clears them.
func (s *Session) ChangeModule(module *models.Module, moduleErrors []models.ModuleError, corrections []models.ModuleCorrection) error {
	if err := module.Validate(); err != nil {
		return err
	}

	overlays := models.Overlays{
		Errors:      append([]models.ModuleError(nil), moduleErrors...),
		Corrections: append([]models.ModuleCorrection(nil), corrections...),
	}

	commit := func() {
		if overlays.Empty() {
			delete(s.overlays, module.Path)
		} else {
			s.overlays[module.Path] = overlays
		}
		s.activePath = module.Path
		s.activeModule = module
	}
	return s.dispatch("ChangeModule", commit, func(sf surface.Surface) error {
		return sf.ChangeModule(module, overlays)
	})
}

// Overlays returns the diagnostics currently attached to path.
func (s *Session) Overlays(path string) models.Overlays {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.overlays[path]
	return models.Overlays{
		Errors:      append([]models.ModuleError(nil), o.Errors...),
		Corrections: append([]models.ModuleCorrection(nil), o.Corrections...),
	}
}

// OpenModule focuses module. When the resolver given to EditorElement has a
// custom editor for the module, the custom editor is shown instead and the
// surface is not asked to open it.
func (s *Session) OpenModule(module *models.Module) error {
	if err := module.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	var custom CustomEditor
	if s.resolver != nil {
		if ed, ok := s.resolver(module.Path); ok {
			custom = ed
		}
	}
	commit := func() {
		s.customEditor = custom
		s.activePath = module.Path
		s.activeModule = module
	}
	if custom != nil {
		if s.disposed {
			s.mu.Unlock()
			return errors.SessionDisposed("OpenModule")
		}
		commit()
	}
	s.mu.Unlock()

	if custom != nil {
		s.logger.WithFields(logrus.Fields{
			"path":   module.Path,
			"editor": custom.Name(),
		}).Debug("Opening module in custom editor")
		return nil
	}

	return s.dispatch("OpenModule", commit, func(sf surface.Surface) error {
		return sf.OpenModule(module)
	})
}

// UpdateLayout resizes the surface.
func (s *Session) UpdateLayout(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "layout dimensions must be positive").
			WithDetail("width", width).
			WithDetail("height", height)
	}

	commit := func() { s.width, s.height = width, height }
	return s.dispatch("UpdateLayout", commit, func(sf surface.Surface) error {
		return sf.Layout(width, height)
	})
}

// ApplyOperations applies batch to the live documents. Only one batch is
// applied at a time: with the reject policy an overlapping call fails with
// CONCURRENT_APPLY, with the queue policy it waits. The surface's error is
// returned unchanged and partial edits are not rolled back.
func (s *Session) ApplyOperations(ctx context.Context, batch models.OperationBatch) error {
	for path := range batch {
		if err := (&models.Module{Path: path}).Validate(); err != nil {
			return errors.InvalidOperation(path, "path must be absolute")
		}
	}

	s.mu.Lock()
	initialized, disposed := s.initialized, s.disposed
	s.mu.Unlock()
	if disposed {
		return errors.SessionDisposed("ApplyOperations")
	}
	if !initialized {
		return errors.NotInitialized("ApplyOperations")
	}

	return s.gate.Run(ctx, func(ctx context.Context) error {
		handle, err := s.awaitLive(ctx, "ApplyOperations")
		if err != nil {
			return err
		}
		s.logger.WithField("paths", len(batch)).Debug("Applying operation batch")
		return handle.Surface.ApplyOperations(context.WithoutCancel(ctx), batch)
	})
}

// CallCallback resolves a pending save. Unknown ids are ignored.
func (s *Session) CallCallback(id string) bool {
	fired := s.registry.Call(id)
	if !fired {
		s.logger.WithField("id", id).Debug("No pending callback")
	}
	return fired
}

// CallCallbackError rejects a pending save with message, or a default
// message when message is empty. Unknown ids are ignored.
func (s *Session) CallCallbackError(id, message string) bool {
	fired := s.registry.CallError(id, message)
	if !fired {
		s.logger.WithField("id", id).Debug("No pending callback")
	}
	return fired
}

// Callbacks returns the pending callback ids.
func (s *Session) Callbacks() []string {
	return s.registry.IDs()
}

// Modules returns the module paths known to the document layer.
func (s *Session) Modules() []string {
	return s.docs.Paths()
}

// SubscribeModules streams module path-set changes. Call the returned
// function to stop.
func (s *Session) SubscribeModules() (<-chan docsync.Update, func()) {
	ch := s.docs.Subscribe()
	return ch, func() { s.docs.Unsubscribe(ch) }
}

// sessionListener receives surface events on behalf of a Session.
type sessionListener struct {
	s *Session
}

func (l sessionListener) OnCodeChange(change surface.CodeChange) {
	if l.s.gate.Busy() {
		l.s.logger.WithField("path", change.Path).Debug("Suppressing change echo while applying operations")
		return
	}
	l.s.mu.Lock()
	hook := l.s.opts.OnCodeChange
	l.s.mu.Unlock()
	if hook != nil {
		hook(change)
	}
}

func (l sessionListener) OnSelectionChange(change surface.SelectionChange) {
	l.s.mu.Lock()
	start := change.Selection.Start
	l.s.cursor = &start
	hook := l.s.opts.OnSelectionChange
	l.s.mu.Unlock()
	if hook != nil {
		hook(change)
	}
}

func (l sessionListener) OnSaveRequest(req surface.SaveRequest, done func(err error)) {
	id := l.s.registry.Register(done)

	l.s.mu.Lock()
	hook := l.s.opts.OnSave
	l.s.mu.Unlock()

	l.s.logger.WithFields(logrus.Fields{"id": id, "path": req.Path}).Debug("Save requested")
	if hook == nil {
		l.s.registry.CallError(id, "")
		return
	}
	hook(SaveRequest{ID: id, Path: req.Path, Code: req.Code})
}
