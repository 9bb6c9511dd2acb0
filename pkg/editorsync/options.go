package editorsync

import (
	"github.com/grovetools/editsync/config"
	"github.com/grovetools/editsync/pkg/assets"
	"github.com/grovetools/editsync/pkg/callbacks"
	"github.com/grovetools/editsync/pkg/extensions"
	"github.com/grovetools/editsync/pkg/gate"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/surface"
	"github.com/sirupsen/logrus"
)

// Config holds the session settings taken from editsync.yml.
type Config struct {
	Width         int
	Height        int
	ReadOnly      bool
	MailboxSize   int
	OverlapPolicy gate.Policy
}

// ConfigFrom extracts session settings from a loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Width:         cfg.Editor.Width,
		Height:        cfg.Editor.Height,
		ReadOnly:      cfg.Editor.ReadOnly,
		MailboxSize:   cfg.Session.MailboxSize,
		OverlapPolicy: gate.ParsePolicy(cfg.Session.OverlapPolicy),
	}
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 120
	}
	if c.Height <= 0 {
		c.Height = 40
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = 64
	}
	return c
}

// Options are the host accessors and hooks passed to Initialize.
type Options struct {
	CurrentSandbox func() *models.Sandbox
	CurrentModule  func() *models.Module
	// ModulesByPath returns the host's module map. It seeds the document layer.
	ModulesByPath func() map[string]*models.Module
	// SubscribeModulePaths registers for module map changes.
	SubscribeModulePaths func(cb func(map[string]*models.Module)) (unsubscribe func())

	// OnCodeChange receives edits made inside the surface. Edits caused by
	// ApplyOperations are not echoed.
	OnCodeChange func(change surface.CodeChange)
	// OnSelectionChange receives local cursor moves.
	OnSelectionChange func(change surface.SelectionChange)
	// OnSave receives save requests. The host answers with CallCallback or
	// CallCallbackError using req.ID.
	OnSave func(req SaveRequest)
}

// SaveRequest is a save started inside the surface.
type SaveRequest struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Code string `json:"code"`
}

// EditorOptions are the options changeable after Initialize.
type EditorOptions struct {
	ReadOnly bool `json:"readOnly"`
}

// CustomEditor renders a module instead of the editing surface, for example
// an image preview.
type CustomEditor interface {
	Name() string
	Render(module *models.Module, width, height int) string
}

// CustomEditorResolver returns the custom editor for a module path, if any.
type CustomEditorResolver func(path string) (CustomEditor, bool)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Session) { s.logger = logger }
}

// WithResourceLoader sets the resource awaited before the surface is built.
func WithResourceLoader(loader assets.Loader) Option {
	return func(s *Session) { s.loader = loader }
}

// WithExtensionStore persists extension settings in store.
func WithExtensionStore(store extensions.Store) Option {
	return func(s *Session) { s.extStore = store }
}

// WithRegistry shares a callback registry with the session.
func WithRegistry(registry *callbacks.Registry) Option {
	return func(s *Session) { s.registry = registry }
}
