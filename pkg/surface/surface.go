// Package surface defines the contract between an editor session and the
// embedded editing runtime it drives.
package surface

import (
	"context"

	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/ot"
	"github.com/sirupsen/logrus"
)

// Surface is the live API of an editing runtime.
//
// Forwarding calls (ChangeModule, OpenModule, UpdateSelections, SetReadOnly,
// Layout, SyncModules) are cheap and synchronous. ApplyOperations, RunCommand
// and the extension calls may block on the runtime and take a context.
type Surface interface {
	// SyncModules replaces the set of module paths the runtime knows about.
	SyncModules(paths []string) error
	// ChangeModule makes module active and replaces its diagnostics.
	ChangeModule(module *models.Module, overlays models.Overlays) error
	// OpenModule opens or focuses module without changing diagnostics.
	OpenModule(module *models.Module) error
	// UpdateSelections replaces all remote user selections.
	UpdateSelections(selections []models.EditorSelection) error
	SetReadOnly(readOnly bool) error
	Layout(width, height int) error

	// ApplyOperations applies a batch to the live documents. The runtime may
	// be left partially updated when an error is returned.
	ApplyOperations(ctx context.Context, batch models.OperationBatch) error
	RunCommand(ctx context.Context, command string) error
	EnableExtension(ctx context.Context, id string) error
	DisableExtension(ctx context.Context, id string) error

	// SetListener registers the receiver of runtime events. A nil listener
	// drops events.
	SetListener(l Listener)
	Close() error
}

// RuntimeInfo describes the runtime behind a Surface.
type RuntimeInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Languages    []string `json:"languages,omitempty"`
}

// Has reports whether the runtime advertises capability.
func (r RuntimeInfo) Has(capability string) bool {
	for _, c := range r.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Viewer is implemented by runtimes that can render their screen as text.
type Viewer interface {
	View() string
}

// KeyInput is implemented by runtimes that accept raw keystrokes in
// <C-x> notation.
type KeyInput interface {
	Input(keys string) error
}

// Handle is the result of a successful bootstrap.
type Handle struct {
	Surface Surface
	Runtime RuntimeInfo
}

// DocumentSource gives a runtime read access to host modules by path.
type DocumentSource interface {
	Module(path string) (*models.Module, bool)
	Paths() []string
}

// BuildConfig is passed to a Factory when the session bootstraps.
type BuildConfig struct {
	Width     int
	Height    int
	ReadOnly  bool
	Documents DocumentSource
	Logger    *logrus.Entry
}

// Factory constructs a runtime. It is called at most once per session.
type Factory func(ctx context.Context, cfg BuildConfig) (*Handle, error)

// CodeChange is emitted when the document text changes inside the runtime.
type CodeChange struct {
	Path      string       `json:"path"`
	Code      string       `json:"code"`
	Operation ot.Operation `json:"operation,omitempty"`
}

// SelectionChange is emitted when the local cursor moves.
type SelectionChange struct {
	Path      string       `json:"path"`
	Selection models.Range `json:"selection"`
}

// SaveRequest is emitted when the user saves inside the runtime.
type SaveRequest struct {
	Path string `json:"path"`
	Code string `json:"code"`
}

// Listener receives runtime events. Calls may arrive on any goroutine.
type Listener interface {
	OnCodeChange(change CodeChange)
	OnSelectionChange(change SelectionChange)
	// OnSaveRequest must eventually call done exactly once, with nil when the
	// save succeeded.
	OnSaveRequest(req SaveRequest, done func(err error))
}
