package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/editsync/cli"
	"github.com/grovetools/editsync/command"
	"github.com/grovetools/editsync/config"
	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/internal/daemon/pidfile"
	"github.com/grovetools/editsync/internal/daemon/server"
	"github.com/grovetools/editsync/pkg/assets"
	"github.com/grovetools/editsync/pkg/daemon"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/extensions"
	"github.com/grovetools/editsync/pkg/paths"
	"github.com/grovetools/editsync/pkg/profiling"
	"github.com/grovetools/editsync/pkg/surface"
	"github.com/grovetools/editsync/pkg/surface/memory"
	"github.com/grovetools/editsync/pkg/surface/nvim"
	"github.com/grovetools/editsync/pkg/watch"
	"github.com/grovetools/editsync/state"
	"github.com/grovetools/editsync/tui"
	"github.com/grovetools/editsync/tui/editor"
	"github.com/grovetools/editsync/tui/theme"
	"github.com/grovetools/editsync/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewServeCmd returns the daemon command that hosts one editor session.
func NewServeCmd() *cobra.Command {
	var (
		root     string
		headless bool
		open     string
		ui       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor session daemon",
		Long: `Run an editor session over a workspace directory in the foreground.

Workspace files are exposed as modules. The session is served on a unix
socket so other editsync commands can apply operations, answer saves and
toggle extensions.

Examples:
  editsync serve
  editsync serve --root ./src --open /main.go
  editsync serve --ui
  editsync serve --headless --socket /tmp/editsync.sock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if headless {
				cfg.Editor.Runtime = config.RuntimeMemory
			}
			if root != "" {
				cfg.Workspace.Root = root
			}
			return runServe(cmd, cfg, open, ui)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Workspace root (default: workspace.root from config)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Use the in-memory runtime instead of nvim")
	cmd.Flags().StringVar(&open, "open", "", "Module path to open once the editor is ready")
	cmd.Flags().BoolVar(&ui, "ui", false, "Show the editor in this terminal; quitting the view stops the daemon")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, open string, ui bool) error {
	theme.ApplyEnvProfile()
	logger := cli.GetLogger(cmd, "serve")
	if ui {
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			return errors.New(errors.ErrCodeInvalidInput, "--ui needs a terminal on stdout")
		}
		// Only the file sink, if any, keeps logging under the view.
		logger.Logger.SetOutput(io.Discard)
	}
	opts := cli.GetOptions(cmd)

	sockPath := resolvePath(opts.Socket, cfg.Session.Socket, paths.SocketPath())
	pidPath := resolvePath(cfg.Session.PidFile, paths.PidFilePath())
	statePath := resolvePath(cfg.Extensions.StateFile, paths.StateFilePath())

	// 1. Acquire Lock
	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	for id := range cfg.Extensions.Commands {
		if _, err := extensions.Lookup(id); err != nil {
			logger.WithError(err).WithField("extension", id).Warn("Ignoring commands for unknown extension")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Workspace and session
	span := profiling.Start("serve/workspace")
	ws, err := watch.New(watch.Options{
		Root:     cfg.Workspace.Root,
		Exclude:  cfg.Workspace.Exclude,
		Debounce: time.Duration(cfg.Workspace.DebounceMs) * time.Millisecond,
	}, logger.WithField("component", "workspace"))
	span.Stop()
	if err != nil {
		return err
	}
	defer ws.Close()
	go ws.Start(ctx)

	sessCfg := editorsync.ConfigFrom(cfg)
	if w, h, ok := terminalSize(); ok {
		sessCfg.Width, sessCfg.Height = w, h
	}

	sessOpts := []editorsync.Option{
		editorsync.WithLogger(logger.WithField("component", "session")),
		editorsync.WithExtensionStore(state.NewStore(statePath)),
	}
	if cfg.Editor.Font.Path != "" {
		sessOpts = append(sessOpts, editorsync.WithResourceLoader(
			assets.NewFileWaiter(cfg.Editor.Font.Path, cfg.FontTimeout(), logger.WithField("component", "assets")),
		))
	}

	if cfg.Editor.Runtime == config.RuntimeNvim {
		span := profiling.Start("serve/probe")
		v, err := nvim.Probe(ctx, nvim.OptionsFrom(cfg), command.NewSafeBuilder())
		span.Stop()
		if err != nil {
			return err
		}
		logger.WithField("version", v).Debug("Found nvim")
	}

	sess := editorsync.New(sessCfg, runtimeFactory(cfg), sessOpts...)
	defer sess.Unmount()

	span = profiling.Start("serve/initialize")
	err = sess.Initialize(ctx, editorsync.Options{
		ModulesByPath:        ws.Snapshot,
		SubscribeModulePaths: ws.Subscribe,
		OnCodeChange: func(change surface.CodeChange) {
			logger.WithFields(logrus.Fields{"path": change.Path, "op": change.Operation.String()}).Debug("Local edit")
		},
		OnSave: func(req editorsync.SaveRequest) {
			if err := ws.Write(req.Path, req.Code); err != nil {
				logger.WithError(err).WithField("path", req.Path).Warn("Save failed")
				sess.CallCallbackError(req.ID, err.Error())
				return
			}
			sess.CallCallback(req.ID)
		},
	})
	span.Stop()
	if err != nil {
		return err
	}

	if cfg.Extensions.Vim != nil {
		if err := sess.SetVimExtensionEnabled(ctx, *cfg.Extensions.Vim); err != nil {
			logger.WithError(err).Warn("Failed to apply extensions.vim")
		}
	}
	if open != "" {
		if module, ok := ws.Snapshot()[open]; ok {
			if err := sess.ChangeModule(module, nil, nil); err != nil {
				logger.WithError(err).Warn("Failed to open module")
			}
		} else {
			entry := logger.WithField("path", open)
			if near, ok := ws.Suggest(open); ok {
				entry = entry.WithField("suggestion", near)
			}
			entry.Warn("Module not found in workspace")
		}
	}

	// 3. Live config reload
	cwd, _ := os.Getwd()
	if watcher, err := daemon.NewConfigWatcher(cwd, 0, func(next *config.Config) {
		applyReload(sess, next, logger)
	}); err != nil {
		logger.WithError(err).Debug("Config watcher disabled")
	} else {
		defer watcher.Close()
		go watcher.Start(ctx)
	}

	// 4. Server
	srv := server.New(logger.WithField("component", "server"))
	srv.SetSession(sess)
	srv.SetInfo(&server.Info{
		PID:       os.Getpid(),
		Root:      ws.Root(),
		Runtime:   cfg.Editor.Runtime,
		StartedAt: time.Now(),
	})

	// 5. Handle Signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			logger.Info("Received stop signal")
		case <-ctx.Done():
			return
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	// 6. Start Server
	logger.WithFields(logrus.Fields{
		"pid":     os.Getpid(),
		"root":    ws.Root(),
		"runtime": cfg.Editor.Runtime,
	}).Info("Starting daemon")

	if !ui {
		if err := srv.ListenAndServe(sockPath); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		_ = os.Remove(sockPath)
		return nil
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(sockPath)
		cancel()
	}()
	if err := runUI(ctx, sess); err != nil {
		logger.WithError(err).Error("Editor view failed")
	}
	select {
	case stop <- os.Interrupt:
	default:
	}
	if err := <-serveErr; err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	_ = os.Remove(sockPath)
	return nil
}

// runUI shows the session in the terminal until the user quits or ctx ends.
func runUI(ctx context.Context, sess *editorsync.Session) error {
	tui.InitializeTUI()
	model, err := editor.New(sess, nil)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if stderrors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func runtimeFactory(cfg *config.Config) surface.Factory {
	if cfg.Editor.Runtime == config.RuntimeMemory {
		return memory.New(memory.Hooks{}).Factory()
	}
	return nvim.Factory(nvim.OptionsFrom(cfg))
}

// applyReload pushes the live-changeable settings of a reloaded config.
func applyReload(sess *editorsync.Session, cfg *config.Config, logger *logrus.Entry) {
	if err := sess.SetReadOnly(cfg.Editor.ReadOnly); err != nil {
		logger.WithError(err).Warn("Failed to apply editor.read_only")
	}
	if cfg.Extensions.Vim == nil {
		return
	}
	status := sess.State()
	if status.VimEnabled != nil && *status.VimEnabled == *cfg.Extensions.Vim {
		return
	}
	if err := sess.SetVimExtensionEnabled(context.Background(), *cfg.Extensions.Vim); err != nil {
		logger.WithError(err).Warn("Failed to apply extensions.vim")
	}
}

// terminalSize reports the size of the controlling terminal, if any.
func terminalSize() (int, int, bool) {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) {
		return 0, 0, false
	}
	w, h, err := term.GetSize(int(fd))
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// resolvePath returns the first non-empty value with ~ and environment
// variables expanded.
func resolvePath(values ...string) string {
	for _, v := range values {
		if v == "" {
			continue
		}
		if p, err := pathutil.Expand(v); err == nil {
			return p
		}
		return v
	}
	return ""
}

// socketFor resolves the daemon socket for client commands.
func socketFor(cmd *cobra.Command) string {
	if s := cli.GetOptions(cmd).Socket; s != "" {
		return s
	}
	if cwd, err := os.Getwd(); err == nil {
		if cfg, err := config.LoadOrDefault(cwd); err == nil && cfg.Session.Socket != "" {
			return resolvePath(cfg.Session.Socket)
		}
	}
	return paths.SocketPath()
}
