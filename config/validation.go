package config

import (
	"fmt"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/moby/patternmatcher"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Editor.Runtime {
	case RuntimeNvim, RuntimeMemory:
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("editor.runtime must be '%s' or '%s', got '%s'", RuntimeNvim, RuntimeMemory, c.Editor.Runtime)).
			WithDetail("field", "editor.runtime")
	}

	if c.Editor.Width <= 0 || c.Editor.Height <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, "editor.width and editor.height must be positive").
			WithDetail("width", c.Editor.Width).
			WithDetail("height", c.Editor.Height)
	}

	if c.Editor.Font.Timeout != "" {
		if _, err := time.ParseDuration(c.Editor.Font.Timeout); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "editor.font.timeout is not a valid duration").
				WithDetail("field", "editor.font.timeout")
		}
	}

	if c.Session.MailboxSize <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, "session.mailbox_size must be positive").
			WithDetail("field", "session.mailbox_size")
	}

	switch c.Session.OverlapPolicy {
	case OverlapReject, OverlapQueue:
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("session.overlap_policy must be '%s' or '%s', got '%s'", OverlapReject, OverlapQueue, c.Session.OverlapPolicy)).
			WithDetail("field", "session.overlap_policy")
	}

	if c.Workspace.DebounceMs < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "workspace.debounce_ms cannot be negative")
	}

	if _, err := patternmatcher.New(c.Workspace.Exclude); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "workspace.exclude contains an invalid pattern").
			WithDetail("field", "workspace.exclude")
	}

	for id, cmds := range c.Extensions.Commands {
		if id == "" {
			return errors.New(errors.ErrCodeConfigValidation, "extensions.commands cannot contain an empty id")
		}
		if cmds.Enable == "" || cmds.Disable == "" {
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("extensions.commands.%s needs both enable and disable", id)).
				WithDetail("extension", id)
		}
	}

	return nil
}
