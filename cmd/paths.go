package cmd

import (
	"github.com/grovetools/editsync/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput represents the XDG-compliant paths used by editsync.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	StateDir  string `json:"state_dir"`
	CacheDir  string `json:"cache_dir"`
	Socket    string `json:"socket"`
	PidFile   string `json:"pid_file"`
	StateFile string `json:"state_file"`
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by editsync",
		Long: `Print the paths used by editsync as JSON.

- config_dir: global editsync.yml
- state_dir: extension settings, logs and the pidfile
- cache_dir: regenerable data
- socket: daemon API socket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), PathsOutput{
				ConfigDir: paths.ConfigDir(),
				StateDir:  paths.StateDir(),
				CacheDir:  paths.CacheDir(),
				Socket:    paths.SocketPath(),
				PidFile:   paths.PidFilePath(),
				StateFile: paths.StateFilePath(),
			})
		},
	}
}
