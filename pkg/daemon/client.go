// Package daemon is the client side of the editsync daemon API and the
// config watcher the daemon reloads settings with.
package daemon

import (
	"context"

	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/models"
)

// Client defines the interface for interacting with a running editsync
// daemon. RemoteClient implements it over the unix socket.
type Client interface {
	// State returns the session status.
	State(ctx context.Context) (*editorsync.Status, error)

	// Modules returns the module paths known to the session.
	Modules(ctx context.Context) ([]string, error)

	// Callbacks returns the pending callback ids.
	Callbacks(ctx context.Context) ([]string, error)

	// ResolveCallback completes a pending save. It reports whether the id
	// was pending.
	ResolveCallback(ctx context.Context, id string) (bool, error)

	// RejectCallback fails a pending save with message. An empty message
	// uses the session default.
	RejectCallback(ctx context.Context, id, message string) (bool, error)

	// ApplyOperations submits an operation batch.
	ApplyOperations(ctx context.Context, batch models.OperationBatch) error

	// RunCommand runs an editor command.
	RunCommand(ctx context.Context, command string) error

	// SetVimExtensionEnabled toggles the vim extension.
	SetVimExtensionEnabled(ctx context.Context, enabled bool) error

	// StreamModules subscribes to module path-set updates. The channel is
	// closed when ctx is cancelled or the connection is lost.
	StreamModules(ctx context.Context) (<-chan ModuleUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// ModuleUpdate is one update pushed by /api/stream.
type ModuleUpdate struct {
	UpdateType string   `json:"update_type"` // "initial", "modules", "disposed"
	Paths      []string `json:"paths,omitempty"`
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
	Changed    []string `json:"changed,omitempty"`
}
