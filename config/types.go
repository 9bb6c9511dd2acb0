package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Runtime names accepted by editor.runtime.
const (
	RuntimeNvim   = "nvim"
	RuntimeMemory = "memory"
)

// Overlap policies accepted by session.overlap_policy.
const (
	OverlapReject = "reject"
	OverlapQueue  = "queue"
)

// Config is the root of editsync.yml.
type Config struct {
	Version    string           `yaml:"version" toml:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Editor     EditorConfig     `yaml:"editor,omitempty" toml:"editor,omitempty" jsonschema:"description=Embedded editing surface settings"`
	Session    SessionConfig    `yaml:"session,omitempty" toml:"session,omitempty" jsonschema:"description=Session synchronization settings"`
	Workspace  WorkspaceConfig  `yaml:"workspace,omitempty" toml:"workspace,omitempty" jsonschema:"description=Workspace whose files are exposed as modules"`
	Extensions ExtensionsConfig `yaml:"extensions,omitempty" toml:"extensions,omitempty" jsonschema:"description=Optional editor extensions"`

	// Sections holds every other top-level key (e.g. "logging") so that
	// packages can decode their own section with UnmarshalSection.
	Sections map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// EditorConfig holds settings for the embedded editing surface.
type EditorConfig struct {
	Runtime    string     `yaml:"runtime,omitempty" toml:"runtime,omitempty" jsonschema:"enum=nvim,enum=memory,description=Editing runtime to embed"`
	Width      int        `yaml:"width,omitempty" toml:"width,omitempty" jsonschema:"minimum=1,description=Initial surface width in cells"`
	Height     int        `yaml:"height,omitempty" toml:"height,omitempty" jsonschema:"minimum=1,description=Initial surface height in cells"`
	UserConfig bool       `yaml:"user_config,omitempty" toml:"user_config,omitempty" jsonschema:"description=If true, the nvim runtime loads the user's config instead of --clean"`
	ReadOnly   bool       `yaml:"read_only,omitempty" toml:"read_only,omitempty" jsonschema:"description=Start the surface in read-only mode"`
	Args       []string   `yaml:"args,omitempty" toml:"args,omitempty" jsonschema:"description=Extra arguments passed to the runtime process"`
	Font       FontConfig `yaml:"font,omitempty" toml:"font,omitempty" jsonschema:"description=Resource that must exist before the surface is constructed"`
}

// FontConfig describes the resource awaited during bootstrap.
type FontConfig struct {
	Path    string `yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=Path of the font file to wait for; empty disables the wait"`
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty" jsonschema:"description=Optional wait limit (Go duration); empty waits indefinitely"`
}

// SessionConfig controls the synchronization core.
type SessionConfig struct {
	MailboxSize   int    `yaml:"mailbox_size,omitempty" toml:"mailbox_size,omitempty" jsonschema:"minimum=1,description=Calls buffered before the surface is ready"`
	OverlapPolicy string `yaml:"overlap_policy,omitempty" toml:"overlap_policy,omitempty" jsonschema:"enum=reject,enum=queue,description=What happens to an operation batch submitted while another is applying"`
	Socket        string `yaml:"socket,omitempty" toml:"socket,omitempty" jsonschema:"description=Unix socket for the daemon API"`
	PidFile       string `yaml:"pid_file,omitempty" toml:"pid_file,omitempty" jsonschema:"description=PID file for the daemon"`
}

// WorkspaceConfig describes the directory served as modules.
type WorkspaceConfig struct {
	Root       string   `yaml:"root,omitempty" toml:"root,omitempty" jsonschema:"description=Workspace root directory"`
	Exclude    []string `yaml:"exclude,omitempty" toml:"exclude,omitempty" jsonschema:"description=Patterns (dockerignore syntax) of paths that are not modules"`
	DebounceMs int      `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" jsonschema:"minimum=0,description=Debounce for file system change notifications"`
}

// ExtensionCommands are the runtime commands that toggle one extension.
type ExtensionCommands struct {
	Enable  string `yaml:"enable" toml:"enable" jsonschema:"description=Command run to enable the extension"`
	Disable string `yaml:"disable" toml:"disable" jsonschema:"description=Command run to disable the extension"`
}

// ExtensionsConfig holds optional extension settings.
type ExtensionsConfig struct {
	StateFile string                       `yaml:"state_file,omitempty" toml:"state_file,omitempty" jsonschema:"description=File persisting extension enablement"`
	Vim       *bool                        `yaml:"vim,omitempty" toml:"vim,omitempty" jsonschema:"description=Enable the vim extension on startup"`
	Commands  map[string]ExtensionCommands `yaml:"commands,omitempty" toml:"commands,omitempty" jsonschema:"description=Per-extension runtime commands keyed by extension id"`
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	if c.Editor.Runtime == "" {
		c.Editor.Runtime = RuntimeNvim
	}
	if c.Editor.Width == 0 {
		c.Editor.Width = 120
	}
	if c.Editor.Height == 0 {
		c.Editor.Height = 40
	}

	if c.Session.MailboxSize == 0 {
		c.Session.MailboxSize = 64
	}
	if c.Session.OverlapPolicy == "" {
		c.Session.OverlapPolicy = OverlapReject
	}

	if c.Workspace.Root == "" {
		c.Workspace.Root = "."
	}
	if c.Workspace.Exclude == nil {
		c.Workspace.Exclude = []string{".git", "node_modules"}
	}
	if c.Workspace.DebounceMs == 0 {
		c.Workspace.DebounceMs = 100
	}

	if c.Extensions.Commands == nil {
		c.Extensions.Commands = make(map[string]ExtensionCommands)
	}
	if _, ok := c.Extensions.Commands["vscodevim.vim"]; !ok {
		c.Extensions.Commands["vscodevim.vim"] = ExtensionCommands{
			Enable:  "lua vim.g.editsync_modal = true",
			Disable: "lua vim.g.editsync_modal = false",
		}
	}
}

// FontTimeout parses editor.font.timeout. Zero means no limit.
func (c *Config) FontTimeout() time.Duration {
	if c.Editor.Font.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Editor.Font.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// UnmarshalSection decodes a specific top-level section of editsync.yml
// into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalSection("logging", &logCfg)
func (c *Config) UnmarshalSection(key string, target interface{}) error {
	section, ok := c.Sections[key]
	if !ok {
		// A missing section leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(section); err != nil {
		return fmt.Errorf("failed to decode config section '%s': %w", key, err)
	}

	return nil
}
