// Package memory is a headless editing runtime. It keeps documents as plain
// text, records every call it receives and can simulate user actions. The
// serve command uses it with --headless and tests use it as the runtime.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/ot"
	"github.com/grovetools/editsync/pkg/surface"
)

// RuntimeName is reported in surface.RuntimeInfo.
const RuntimeName = "memory"

// Hooks let callers intercept runtime work.
type Hooks struct {
	// BeforeApply runs before each path of a batch is applied. Returning an
	// error stops the batch there.
	BeforeApply func(ctx context.Context, path string) error
	// OnCommand runs for RunCommand; its error is returned to the caller.
	OnCommand func(ctx context.Context, command string) error
}

// Surface is an in-memory surface.Surface.
type Surface struct {
	hooks Hooks

	mu         sync.Mutex
	docs       surface.DocumentSource
	texts      map[string]string
	paths      []string
	active     string
	overlays   map[string]models.Overlays
	selections []models.EditorSelection
	readOnly   bool
	width      int
	height     int
	commands   []string
	keys       []string
	extensions map[string]bool
	calls      []string
	listener   surface.Listener
	closed     bool
	closes     int
}

// New creates an empty runtime.
func New(hooks Hooks) *Surface {
	return &Surface{
		hooks:      hooks,
		texts:      make(map[string]string),
		overlays:   make(map[string]models.Overlays),
		extensions: make(map[string]bool),
	}
}

// Factory returns a surface.Factory that hands out s.
func (s *Surface) Factory() surface.Factory {
	return func(ctx context.Context, cfg surface.BuildConfig) (*surface.Handle, error) {
		s.mu.Lock()
		s.docs = cfg.Documents
		s.width, s.height = cfg.Width, cfg.Height
		s.readOnly = cfg.ReadOnly
		s.mu.Unlock()

		if cfg.Documents != nil {
			if err := s.SyncModules(cfg.Documents.Paths()); err != nil {
				return nil, err
			}
		}

		return &surface.Handle{
			Surface: s,
			Runtime: surface.RuntimeInfo{
				Name:         RuntimeName,
				Version:      "1",
				Capabilities: []string{"operations", "diagnostics", "selections", "extensions"},
			},
		}, nil
	}
}

func (s *Surface) record(call string) error {
	if s.closed {
		return errors.SurfaceFailed(call, fmt.Errorf("surface is closed"))
	}
	s.calls = append(s.calls, call)
	return nil
}

// load makes sure the text of path is known, reading it from the document
// source the first time. Must be called with s.mu held.
func (s *Surface) load(path string) {
	if _, ok := s.texts[path]; ok {
		return
	}
	if s.docs != nil {
		if m, ok := s.docs.Module(path); ok {
			s.texts[path] = m.Code
		}
	}
}

// SyncModules records the set of module paths the host knows.
func (s *Surface) SyncModules(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SyncModules"); err != nil {
		return err
	}
	s.paths = append([]string(nil), paths...)
	return nil
}

// ChangeModule makes module active and replaces its overlays.
func (s *Surface) ChangeModule(module *models.Module, overlays models.Overlays) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ChangeModule:" + module.Path); err != nil {
		return err
	}
	s.active = module.Path
	if _, ok := s.texts[module.Path]; !ok {
		s.texts[module.Path] = module.Code
	}
	if overlays.Empty() {
		delete(s.overlays, module.Path)
	} else {
		s.overlays[module.Path] = overlays
	}
	return nil
}

// OpenModule makes module active, seeding its text on first use.
func (s *Surface) OpenModule(module *models.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("OpenModule:" + module.Path); err != nil {
		return err
	}
	s.active = module.Path
	if _, ok := s.texts[module.Path]; !ok {
		s.texts[module.Path] = module.Code
	}
	return nil
}

// UpdateSelections replaces the remote user selections.
func (s *Surface) UpdateSelections(selections []models.EditorSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("UpdateSelections"); err != nil {
		return err
	}
	s.selections = append([]models.EditorSelection(nil), selections...)
	return nil
}

// SetReadOnly toggles read-only mode. Edit fails while it is set.
func (s *Surface) SetReadOnly(readOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(fmt.Sprintf("SetReadOnly:%t", readOnly)); err != nil {
		return err
	}
	s.readOnly = readOnly
	return nil
}

// Layout records the surface size.
func (s *Surface) Layout(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(fmt.Sprintf("Layout:%dx%d", width, height)); err != nil {
		return err
	}
	s.width, s.height = width, height
	return nil
}

// ApplyOperations applies paths in sorted order. A failure leaves earlier
// paths applied.
func (s *Surface) ApplyOperations(ctx context.Context, batch models.OperationBatch) error {
	s.mu.Lock()
	if err := s.record("ApplyOperations"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	for _, path := range batch.Paths() {
		if s.hooks.BeforeApply != nil {
			if err := s.hooks.BeforeApply(ctx, path); err != nil {
				return err
			}
		}

		s.mu.Lock()
		s.load(path)
		text := s.texts[path]
		next, err := batch[path].Apply(text)
		if err != nil {
			s.mu.Unlock()
			return errors.InvalidOperation(path, err.Error())
		}
		s.texts[path] = next
		listener := s.listener
		s.mu.Unlock()

		if listener != nil {
			listener.OnCodeChange(surface.CodeChange{Path: path, Code: next, Operation: batch[path]})
		}
	}
	return nil
}

// RunCommand records command and passes it to the OnCommand hook.
func (s *Surface) RunCommand(ctx context.Context, command string) error {
	s.mu.Lock()
	if err := s.record("RunCommand:" + command); err != nil {
		s.mu.Unlock()
		return err
	}
	s.commands = append(s.commands, command)
	s.mu.Unlock()

	if s.hooks.OnCommand != nil {
		return s.hooks.OnCommand(ctx, command)
	}
	return nil
}

// Input records keys. Typing is not simulated; use Edit for text changes.
func (s *Surface) Input(keys string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("Input"); err != nil {
		return err
	}
	s.keys = append(s.keys, keys)
	return nil
}

// EnableExtension marks extension id enabled.
func (s *Surface) EnableExtension(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("EnableExtension:" + id); err != nil {
		return err
	}
	s.extensions[id] = true
	return nil
}

// DisableExtension marks extension id disabled.
func (s *Surface) DisableExtension(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("DisableExtension:" + id); err != nil {
		return err
	}
	s.extensions[id] = false
	return nil
}

// SetListener sets the receiver of change, selection and save events.
func (s *Surface) SetListener(l surface.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// Close detaches the listener. It may be called more than once.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closes++
	s.listener = nil
	return nil
}

// Edit simulates the local user editing path.
func (s *Surface) Edit(path string, op ot.Operation) error {
	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidOperation, "surface is read-only").WithDetail("path", path)
	}
	s.load(path)
	next, err := op.Apply(s.texts[path])
	if err != nil {
		s.mu.Unlock()
		return errors.InvalidOperation(path, err.Error())
	}
	s.texts[path] = next
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.OnCodeChange(surface.CodeChange{Path: path, Code: next, Operation: op})
	}
	return nil
}

// MoveCursor simulates the local user selecting a range.
func (s *Surface) MoveCursor(path string, r models.Range) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.OnSelectionChange(surface.SelectionChange{Path: path, Selection: r})
	}
}

// Save simulates the user saving path. The returned channel receives the
// host's answer once the save completes.
func (s *Surface) Save(path string) <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	s.load(path)
	code := s.texts[path]
	listener := s.listener
	s.mu.Unlock()

	if listener == nil {
		result <- errors.SurfaceFailed("save", fmt.Errorf("no listener"))
		return result
	}

	var once sync.Once
	listener.OnSaveRequest(surface.SaveRequest{Path: path, Code: code}, func(err error) {
		once.Do(func() { result <- err })
	})
	return result
}

// Text returns the document text of path.
func (s *Surface) Text(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(path)
	return s.texts[path]
}

// Active returns the focused module path.
func (s *Surface) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Overlays returns the diagnostics shown for path.
func (s *Surface) Overlays(path string) models.Overlays {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlays[path]
}

// Selections returns the remote selections last set.
func (s *Surface) Selections() []models.EditorSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EditorSelection(nil), s.selections...)
}

// ReadOnly reports the read-only flag.
func (s *Surface) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// Size returns the last layout.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Paths returns the last synced module paths.
func (s *Surface) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Commands returns the commands run so far.
func (s *Surface) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Keys returns the keystrokes received so far.
func (s *Surface) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

// ExtensionEnabled reports the last toggle for id and whether it was toggled.
func (s *Surface) ExtensionEnabled(id string) (enabled, toggled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabled, toggled = s.extensions[id]
	return enabled, toggled
}

// Calls returns every call received, in order.
func (s *Surface) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Closes returns how many times Close was called.
func (s *Surface) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Closed reports whether Close was called.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// View renders the focused document.
func (s *Surface) View() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return ""
	}
	s.load(s.active)
	return s.texts[s.active]
}

var _ surface.Surface = (*Surface)(nil)
var _ surface.KeyInput = (*Surface)(nil)
