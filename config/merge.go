package config

// mergeConfigs merges override configuration into base. Scalars in override
// win when set; slices and maps in override replace those in base.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	result.Editor = mergeEditor(base.Editor, override.Editor)

	if override.Session.MailboxSize != 0 {
		result.Session.MailboxSize = override.Session.MailboxSize
	}
	if override.Session.OverlapPolicy != "" {
		result.Session.OverlapPolicy = override.Session.OverlapPolicy
	}
	if override.Session.Socket != "" {
		result.Session.Socket = override.Session.Socket
	}
	if override.Session.PidFile != "" {
		result.Session.PidFile = override.Session.PidFile
	}

	if override.Workspace.Root != "" {
		result.Workspace.Root = override.Workspace.Root
	}
	if override.Workspace.Exclude != nil {
		result.Workspace.Exclude = override.Workspace.Exclude
	}
	if override.Workspace.DebounceMs != 0 {
		result.Workspace.DebounceMs = override.Workspace.DebounceMs
	}

	if override.Extensions.StateFile != "" {
		result.Extensions.StateFile = override.Extensions.StateFile
	}
	if override.Extensions.Vim != nil {
		result.Extensions.Vim = override.Extensions.Vim
	}
	if len(override.Extensions.Commands) > 0 {
		merged := make(map[string]ExtensionCommands, len(base.Extensions.Commands)+len(override.Extensions.Commands))
		for id, cmds := range base.Extensions.Commands {
			merged[id] = cmds
		}
		for id, cmds := range override.Extensions.Commands {
			merged[id] = cmds
		}
		result.Extensions.Commands = merged
	}

	// Sections merge key by key; the override replaces a whole section.
	if len(override.Sections) > 0 {
		merged := make(map[string]interface{}, len(base.Sections)+len(override.Sections))
		for k, v := range base.Sections {
			merged[k] = v
		}
		for k, v := range override.Sections {
			merged[k] = v
		}
		result.Sections = merged
	}

	return &result
}

func mergeEditor(base, override EditorConfig) EditorConfig {
	result := base
	if override.Runtime != "" {
		result.Runtime = override.Runtime
	}
	if override.Width != 0 {
		result.Width = override.Width
	}
	if override.Height != 0 {
		result.Height = override.Height
	}
	if override.UserConfig {
		result.UserConfig = true
	}
	if override.ReadOnly {
		result.ReadOnly = true
	}
	if override.Args != nil {
		result.Args = override.Args
	}
	if override.Font.Path != "" {
		result.Font.Path = override.Font.Path
	}
	if override.Font.Timeout != "" {
		result.Font.Timeout = override.Font.Timeout
	}
	return result
}
