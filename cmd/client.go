package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grovetools/editsync/cli"
	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/logging"
	"github.com/grovetools/editsync/internal/daemon/pidfile"
	"github.com/grovetools/editsync/pkg/daemon"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/paths"
	"github.com/grovetools/editsync/pkg/process"
	"github.com/grovetools/editsync/tui/theme"
	"github.com/spf13/cobra"
)

// withClient connects to the daemon and runs fn with a bounded context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c daemon.Client) error) error {
	c, err := daemon.Connect(socketFor(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return fn(ctx, c)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// NewStatusCmd reports the daemon and session state.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the editor session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				st, err := c.State(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if cli.GetOptions(cmd).JSONOutput {
					return printJSON(out, st)
				}

				t := theme.DefaultTheme
				state := st.Bootstrap.String()
				switch {
				case st.Error != "":
					state = t.Error.Render(state)
				case st.Disposed:
					state = t.Warning.Render("disposed")
				default:
					state = t.Success.Render(state)
				}
				fmt.Fprintf(out, "%s %s\n", t.Bold.Render("Bootstrap:"), state)
				if st.Error != "" {
					fmt.Fprintf(out, "%s %s\n", t.Bold.Render("Error:"), st.Error)
				}
				fmt.Fprintf(out, "%s %s %s\n", t.Bold.Render("Runtime:"), st.Runtime, t.Muted.Render(st.RuntimeVersion))
				fmt.Fprintf(out, "%s %s\n", t.Bold.Render("Active:"), st.ActivePath)
				fmt.Fprintf(out, "%s %d  %s %d  %s %d\n",
					t.Bold.Render("Modules:"), st.Modules,
					t.Bold.Render("Queued:"), st.Mailbox,
					t.Bold.Render("Pending saves:"), st.PendingCallbacks)
				fmt.Fprintf(out, "%s %dx%d  %s %t\n", t.Bold.Render("Size:"), st.Width, st.Height, t.Bold.Render("Read-only:"), st.ReadOnly)
				return nil
			})
		},
	}
}

// NewStopCmd stops the running daemon.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			pidPath := resolvePath(cfg.Session.PidFile, paths.PidFilePath())

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Warn("Daemon is not running")
				return nil
			}

			stopped, err := process.Terminate(pid, 5*time.Second)
			if err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			if !stopped {
				return fmt.Errorf("daemon (PID %d) did not exit within 5s", pid)
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Stopped daemon (PID %d)", pid)
			return nil
		},
	}
}

// NewApplyCmd submits an operation batch read from a file or stdin.
func NewApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [file]",
		Short: "Apply a batch of remote operations",
		Long: `Apply a batch of operations to the session's documents.

The batch is a JSON object mapping absolute module paths to operations.
An operation is an array of components: a positive number retains, a
string inserts and a negative number deletes.

Examples:
  editsync apply batch.json
  echo '{"/main.go":[10,"x",-2]}' | editsync apply`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			var batch models.OperationBatch
			if err := json.Unmarshal(data, &batch); err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid operation batch")
			}

			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				if err := c.ApplyOperations(ctx, batch); err != nil {
					return err
				}
				logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Applied operations to %d module(s)", len(batch))
				return nil
			})
		},
	}
}

// NewRunCmd runs an editor command inside the surface.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <command>",
		Short: "Run an editor command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				return c.RunCommand(ctx, strings.Join(args, " "))
			})
		},
	}
}

// NewCallbackCmd answers pending save callbacks.
func NewCallbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callback",
		Short: "List and answer pending save callbacks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending callback ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				ids, err := c.Callbacks(ctx)
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return printJSON(cmd.OutOrStdout(), ids)
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <id>",
		Short: "Complete a pending save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				fired, err := c.ResolveCallback(ctx, args[0])
				if err != nil {
					return err
				}
				return reportFired(cmd, args[0], fired)
			})
		},
	})

	reject := &cobra.Command{
		Use:   "reject <id>",
		Short: "Fail a pending save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				fired, err := c.RejectCallback(ctx, args[0], message)
				if err != nil {
					return err
				}
				return reportFired(cmd, args[0], fired)
			})
		},
	}
	reject.Flags().StringP("message", "m", "", "Error message shown in the editor")
	cmd.AddCommand(reject)

	return cmd
}

func reportFired(cmd *cobra.Command, id string, fired bool) error {
	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	if !fired {
		pretty.Warn("No pending callback %s", id)
		return nil
	}
	pretty.Success("Answered callback %s", id)
	return nil
}

// NewVimCmd toggles the vim extension.
func NewVimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vim",
		Short: "Enable or disable the vim extension",
	}
	for _, enabled := range []bool{true, false} {
		enabled := enabled
		use, short := "enable", "Enable the vim extension"
		if !enabled {
			use, short = "disable", "Disable the vim extension and remember the choice"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
					if err := c.SetVimExtensionEnabled(ctx, enabled); err != nil {
						return err
					}
					logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Vim extension %sd", use)
					return nil
				})
			},
		})
	}
	return cmd
}

// NewModulesCmd lists module paths, optionally following changes.
func NewModulesCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the session's module paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !follow {
				return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
					paths, err := c.Modules(ctx)
					if err != nil {
						return err
					}
					for _, p := range paths {
						fmt.Fprintln(out, p)
					}
					return nil
				})
			}

			c, err := daemon.Connect(socketFor(cmd))
			if err != nil {
				return err
			}
			defer c.Close()

			updates, err := c.StreamModules(cmd.Context())
			if err != nil {
				return err
			}
			t := theme.DefaultTheme
			for u := range updates {
				if cli.GetOptions(cmd).JSONOutput {
					if err := printJSON(out, u); err != nil {
						return err
					}
					continue
				}
				switch u.UpdateType {
				case "initial":
					for _, p := range u.Paths {
						fmt.Fprintln(out, p)
					}
				case "disposed":
					fmt.Fprintln(out, t.Muted.Render("session closed"))
					return nil
				default:
					for _, p := range u.Added {
						fmt.Fprintln(out, t.Success.Render("+ "+p))
					}
					for _, p := range u.Removed {
						fmt.Fprintln(out, t.Error.Render("- "+p))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream path-set changes")
	return cmd
}
