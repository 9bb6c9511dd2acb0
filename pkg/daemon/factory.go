package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/paths"
)

// Connect returns a RemoteClient for the daemon listening on socketPath, or
// on the default socket when socketPath is empty. It fails with
// DAEMON_UNAVAILABLE when nothing accepts connections there.
func Connect(socketPath string) (*RemoteClient, error) {
	if socketPath == "" {
		socketPath = paths.SocketPath()
	}
	if _, err := os.Stat(socketPath); err != nil {
		return nil, errors.DaemonUnavailable(socketPath, err)
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return nil, errors.DaemonUnavailable(socketPath, err)
	}
	conn.Close()
	return NewRemoteClient(socketPath)
}
