package cmd

import (
	"bufio"
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/grovetools/editsync/cli"
	"github.com/grovetools/editsync/pkg/logging/logutil"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd prints or follows the daemon's file log.
func NewLogsCmd() *cobra.Command {
	var (
		follow    bool
		lines     int
		component string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log file",
		Long: `Show the log written by the logging file sink.

Enable the sink with logging.file.enabled in editsync.yml.

Examples:
  editsync logs -n 50
  editsync logs -f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			path, _, err := logutil.FindLogFile(cfg, component)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !follow {
				return printLastLines(out, path, lines)
			}

			t, err := tail.TailFile(path, tail.Config{
				Follow:   true,
				ReOpen:   true,
				Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
				Logger:   stdlog.New(io.Discard, "", 0),
			})
			if err != nil {
				return fmt.Errorf("failed to follow %s: %w", path, err)
			}
			defer t.Cleanup()

			if err := printLastLines(out, path, lines); err != nil {
				return err
			}
			for {
				select {
				case line, ok := <-t.Lines:
					if !ok {
						return t.Err()
					}
					fmt.Fprintln(out, line.Text)
				case <-cmd.Context().Done():
					return t.Stop()
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log as it grows")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show from the end (0 for all)")
	cmd.Flags().StringVar(&component, "component", "serve", "Component whose log file to show")
	return cmd
}

// printLastLines writes the last n lines of path, or all of it when n <= 0.
func printLastLines(w io.Writer, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var ring []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring = append(ring, scanner.Text())
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, line := range ring {
		fmt.Fprintln(w, line)
	}
	return nil
}
