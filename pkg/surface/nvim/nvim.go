// Package nvim runs an embedded Neovim (nvim --embed) as the editing
// surface. Documents live in acwrite buffers named by module path; edits,
// saves and cursor moves come back as RPC notifications.
package nvim

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/grovetools/editsync/config"
	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/logging"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/ot"
	"github.com/grovetools/editsync/pkg/surface"
	"github.com/neovim/go-client/nvim"
	"github.com/sirupsen/logrus"
)

//go:embed runtime.lua
var runtimeLua string

// RuntimeName is reported in surface.RuntimeInfo.
const RuntimeName = "nvim"

const defaultSelectionColor = "#264f78"

// Options configures the child process.
type Options struct {
	// Command is the nvim binary. Defaults to "nvim".
	Command string
	// Args are appended after --embed.
	Args []string
	// UseConfig loads the user's init files instead of running --clean.
	UseConfig bool
	// Extensions maps an extension id to the commands that toggle it.
	Extensions map[string]config.ExtensionCommands
}

// OptionsFrom builds Options from editsync.yml.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Args:       cfg.Editor.Args,
		UseConfig:  cfg.Editor.UserConfig,
		Extensions: cfg.Extensions.Commands,
	}
}

func (o Options) args() []string {
	args := []string{"--embed"}
	if !o.UseConfig {
		args = append(args, "--clean")
	}
	return append(args, o.Args...)
}

// event is a runtime notification waiting to be delivered to the listener.
type event func(l surface.Listener)

// Surface is a surface.Surface backed by an nvim child process.
type Surface struct {
	v          *nvim.Nvim
	screen     *screen
	extensions map[string]config.ExtensionCommands
	logger     *logrus.Entry

	events chan event
	done   chan struct{}

	mu        sync.Mutex
	listener  surface.Listener
	texts     map[string]string
	closeOnce sync.Once
}

// Factory returns a surface.Factory that starts nvim with opts.
func Factory(opts Options) surface.Factory {
	return func(ctx context.Context, cfg surface.BuildConfig) (*surface.Handle, error) {
		s, version, err := start(ctx, opts, cfg)
		if err != nil {
			return nil, err
		}
		return &surface.Handle{
			Surface: s,
			Runtime: surface.RuntimeInfo{
				Name:         RuntimeName,
				Version:      version,
				Capabilities: []string{"operations", "diagnostics", "selections", "commands", "extensions"},
			},
		}, nil
	}
}

func start(ctx context.Context, opts Options, cfg surface.BuildConfig) (*Surface, string, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("nvim")
	}
	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	childOpts := []nvim.ChildProcessOption{
		nvim.ChildProcessArgs(opts.args()...),
		nvim.ChildProcessContext(ctx),
	}
	if opts.Command != "" {
		childOpts = append(childOpts, nvim.ChildProcessCommand(opts.Command))
	}
	v, err := nvim.NewChildProcess(childOpts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start nvim child process: %w", err)
	}

	s := &Surface{
		v:          v,
		screen:     newScreen(width, height),
		extensions: opts.Extensions,
		logger:     logger,
		events:     make(chan event, 100),
		done:       make(chan struct{}),
		texts:      make(map[string]string),
	}
	go s.pump()

	version, err := s.attach(width, height, cfg.ReadOnly)
	if err != nil {
		s.Close()
		return nil, "", err
	}

	if cfg.Documents != nil {
		if err := s.SyncModules(cfg.Documents.Paths()); err != nil {
			s.Close()
			return nil, "", err
		}
	}

	logger.WithFields(logrus.Fields{
		"version": version,
		"width":   width,
		"height":  height,
	}).Info("Started nvim runtime")
	return s, version, nil
}

func (s *Surface) attach(width, height int, readOnly bool) (string, error) {
	handlers := map[string]interface{}{
		"redraw":          s.screen.handleRedraw,
		"editsync_change": s.onChange,
		"editsync_cursor": s.onCursor,
		"editsync_save":   s.onSave,
	}
	for name, fn := range handlers {
		if err := s.v.RegisterHandler(name, fn); err != nil {
			return "", fmt.Errorf("failed to register %s handler: %w", name, err)
		}
	}

	if err := s.v.AttachUI(width, height, map[string]interface{}{
		"ext_linegrid": true,
		"rgb":          true,
	}); err != nil {
		return "", fmt.Errorf("failed to attach nvim UI: %w", err)
	}

	if err := s.v.ExecLua(runtimeLua, nil); err != nil {
		return "", fmt.Errorf("failed to load editsync runtime: %w", err)
	}
	var version string
	if err := s.v.ExecLua("return editsync.setup(...)", &version, s.v.ChannelID(), readOnly); err != nil {
		return "", fmt.Errorf("failed to set up editsync runtime: %w", err)
	}
	return version, nil
}

// pump delivers notifications outside the RPC goroutine so listeners may
// call back into the runtime.
func (s *Surface) pump() {
	for {
		select {
		case ev := <-s.events:
			s.mu.Lock()
			l := s.listener
			s.mu.Unlock()
			if l != nil {
				ev(l)
			}
		case <-s.done:
			return
		}
	}
}

func (s *Surface) emit(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// remember records the text the runtime holds for path and returns the
// previous one.
func (s *Surface) remember(path, code string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.texts[path]
	s.texts[path] = code
	return prev
}

func (s *Surface) onChange(path, code string) {
	op := ot.Diff(s.remember(path, code), code)
	s.emit(func(l surface.Listener) {
		l.OnCodeChange(surface.CodeChange{Path: path, Code: code, Operation: op})
	})
}

func (s *Surface) focus(op string, module *models.Module) error {
	if err := s.lua(op, "editsync.focus(...)", module.Path, module.Code); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.texts[module.Path]; !ok {
		s.texts[module.Path] = module.Code
	}
	s.mu.Unlock()
	return nil
}

func (s *Surface) onCursor(path string, line, col int) {
	pos := models.Position{Line: line, Column: col}
	s.emit(func(l surface.Listener) {
		l.OnSelectionChange(surface.SelectionChange{Path: path, Selection: models.Range{Start: pos, End: pos}})
	})
}

func (s *Surface) onSave(path, code string) {
	s.emit(func(l surface.Listener) {
		l.OnSaveRequest(surface.SaveRequest{Path: path, Code: code}, func(err error) {
			msg := ""
			if err != nil {
				msg = err.Error()
			}
			if lerr := s.v.ExecLua("editsync.saved(...)", nil, path, msg); lerr != nil {
				s.logger.WithError(lerr).WithField("path", path).Warn("Failed to report save result")
			}
		})
	})
}

func (s *Surface) lua(op, code string, args ...interface{}) error {
	if err := s.v.ExecLua(code, nil, args...); err != nil {
		return errors.SurfaceFailed(op, err)
	}
	return nil
}

func (s *Surface) SyncModules(paths []string) error {
	if paths == nil {
		paths = []string{}
	}
	if err := s.lua("SyncModules", "editsync.sync(...)", paths); err != nil {
		return err
	}
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}
	s.mu.Lock()
	for p := range s.texts {
		if !keep[p] {
			delete(s.texts, p)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Surface) ChangeModule(module *models.Module, overlays models.Overlays) error {
	if err := s.focus("ChangeModule", module); err != nil {
		return err
	}
	return s.lua("ChangeModule", "editsync.diagnostics(...)", module.Path, diagnosticItems(overlays))
}

func (s *Surface) OpenModule(module *models.Module) error {
	return s.focus("OpenModule", module)
}

func (s *Surface) UpdateSelections(selections []models.EditorSelection) error {
	return s.lua("UpdateSelections", "editsync.selections(...)", selectionItems(selections))
}

func (s *Surface) SetReadOnly(readOnly bool) error {
	return s.lua("SetReadOnly", "editsync.set_readonly(...)", readOnly)
}

func (s *Surface) Layout(width, height int) error {
	if err := s.v.TryResizeUI(width, height); err != nil {
		return errors.SurfaceFailed("Layout", err)
	}
	return nil
}

// ApplyOperations applies paths in sorted order. A failure leaves earlier
// paths applied.
func (s *Surface) ApplyOperations(ctx context.Context, batch models.OperationBatch) error {
	for _, path := range batch.Paths() {
		var text *string
		if err := s.v.ExecLua("return editsync.text(...)", &text, path); err != nil {
			return errors.SurfaceFailed("ApplyOperations", err).WithDetail("path", path)
		}
		current := ""
		if text != nil {
			current = *text
		}

		next, err := batch[path].Apply(current)
		if err != nil {
			return errors.InvalidOperation(path, err.Error())
		}
		if err := s.lua("ApplyOperations", "editsync.set_text(...)", path, next); err != nil {
			return err
		}
		s.remember(path, next)
	}
	return nil
}

func (s *Surface) RunCommand(ctx context.Context, command string) error {
	return s.v.Command(command)
}

// Input queues keys as if typed into the runtime.
func (s *Surface) Input(keys string) error {
	if _, err := s.v.Input(keys); err != nil {
		return errors.SurfaceFailed("Input", err)
	}
	return nil
}

func (s *Surface) EnableExtension(ctx context.Context, id string) error {
	return s.toggleExtension(id, true)
}

func (s *Surface) DisableExtension(ctx context.Context, id string) error {
	return s.toggleExtension(id, false)
}

func (s *Surface) toggleExtension(id string, enabled bool) error {
	cmds, ok := s.extensions[id]
	if !ok {
		return errors.UnknownExtension(id)
	}
	cmd := cmds.Disable
	if enabled {
		cmd = cmds.Enable
	}
	if cmd == "" {
		return nil
	}
	s.logger.WithFields(logrus.Fields{"extension": id, "enabled": enabled}).Debug("Toggling extension")
	return s.v.Command(cmd)
}

func (s *Surface) SetListener(l surface.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// View renders the nvim screen.
func (s *Surface) View() string {
	return s.screen.View()
}

// Mode returns the current nvim mode name.
func (s *Surface) Mode() string {
	return s.screen.Mode()
}

func (s *Surface) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.v.Close()
	})
	return err
}

// diagnosticItems converts overlays to vim.diagnostic entries. Errors
// default to ERROR and corrections to HINT.
func diagnosticItems(o models.Overlays) []map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(o.Errors)+len(o.Corrections))
	for _, e := range o.Errors {
		items = append(items, diagnosticItem(e.Diagnostic, models.SeverityError))
	}
	for _, c := range o.Corrections {
		items = append(items, diagnosticItem(c.Diagnostic, models.SeverityHint))
	}
	return items
}

func diagnosticItem(d models.Diagnostic, fallback models.Severity) map[string]interface{} {
	lnum := max(d.Line-1, 0)
	col := max(d.Column-1, 0)
	item := map[string]interface{}{
		"lnum":     lnum,
		"col":      col,
		"message":  d.Message,
		"severity": severityLevel(d.Severity, fallback),
	}
	if d.Title != "" {
		item["message"] = d.Title + ": " + d.Message
	}
	if d.EndLine > 0 {
		item["end_lnum"] = d.EndLine - 1
		item["end_col"] = max(d.EndColumn-1, 0)
	}
	if d.Source != "" {
		item["source"] = d.Source
	}
	return item
}

// severityLevel maps a severity to vim.diagnostic.severity.
func severityLevel(s, fallback models.Severity) int {
	if s == "" {
		s = fallback
	}
	switch s {
	case models.SeverityError:
		return 1
	case models.SeverityWarning:
		return 2
	case models.SeverityInfo:
		return 3
	default:
		return 4
	}
}

// selectionItems converts remote selections to the extmark layout the
// runtime draws: ranges are [start_row, start_col, end_row, end_col, label].
func selectionItems(selections []models.EditorSelection) []map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(selections))
	for _, sel := range selections {
		color := sel.Color
		if color == "" {
			color = defaultSelectionColor
		}
		name := sel.Name
		if name == "" {
			name = sel.UserID
		}
		ranges := [][]interface{}{rangeItem(sel.Primary, true)}
		for _, r := range sel.Secondary {
			ranges = append(ranges, rangeItem(r, false))
		}
		items = append(items, map[string]interface{}{
			"path":   sel.Path,
			"color":  color,
			"name":   name,
			"ranges": ranges,
		})
	}
	return items
}

// rangeItem orders a range so that start precedes end.
func rangeItem(r models.Range, label bool) []interface{} {
	start, end := r.Start, r.End
	if end.Line < start.Line || (end.Line == start.Line && end.Column < start.Column) {
		start, end = end, start
	}
	return []interface{}{start.Line, start.Column, end.Line, end.Column, label}
}

var _ surface.Surface = (*Surface)(nil)
var _ surface.Viewer = (*Surface)(nil)
var _ surface.KeyInput = (*Surface)(nil)
