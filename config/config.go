package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames lists the project config file names in lookup order.
var configNames = []string{
	"editsync.yml",
	"editsync.yaml",
	"editsync.toml",
	".editsync.yml",
	".editsync.yaml",
}

// overrideNames lists the local override files merged over the project config.
var overrideNames = []string{
	"editsync.override.yml",
	"editsync.override.yaml",
	"editsync.override.toml",
}

// Load reads and parses a single configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	if isTOML(path) {
		return LoadFromTOML(data)
	}
	return LoadFromBytes(data)
}

// LoadDefault finds and loads the configuration starting from the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadOrDefault behaves like LoadFrom but returns a defaulted config when no
// project config file exists.
func LoadOrDefault(startDir string) (*Config, error) {
	cfg, err := LoadFrom(startDir)
	if errors.Is(err, errors.ErrCodeConfigNotFound) {
		cfg = &Config{}
		cfg.SetDefaults()
		return cfg, nil
	}
	return cfg, err
}

// LoadFrom loads configuration with hierarchical merging:
// 1. Global config ($XDG_CONFIG_HOME/editsync/editsync.yml) - base layer
// 2. Project config (editsync.yml, searched upward) - overrides global
// 3. Local override (editsync.override.yml) - overrides all
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	projectPath, err := FindConfigFile(startDir)
	if err != nil {
		return nil, err
	}

	var finalConfig *Config

	if globalPath := globalConfigPath(); globalPath != "" && globalPath != projectPath {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		globalConfig, err := decodeFile(globalPath)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
		} else {
			finalConfig = globalConfig
		}
	}

	logger.WithField("path", projectPath).Debug("Loading project configuration")
	projectConfig, err := decodeFile(projectPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse project config").
			WithDetail("path", projectPath)
	}

	if finalConfig == nil {
		finalConfig = projectConfig
	} else {
		logger.Debug("Merging project configuration over global configuration")
		finalConfig = mergeConfigs(finalConfig, projectConfig)
	}

	projectDir := filepath.Dir(projectPath)
	for _, name := range overrideNames {
		overridePath := filepath.Join(projectDir, name)
		if _, err := os.Stat(overridePath); err != nil {
			continue
		}
		logger.WithField("path", overridePath).Debug("Loading local override configuration")
		overrideConfig, err := decodeFile(overridePath)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse override file, skipping")
			continue
		}
		finalConfig = mergeConfigs(finalConfig, overrideConfig)
	}

	finalConfig.SetDefaults()
	if err := finalConfig.Validate(); err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(finalConfig); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(data))
		}
	}

	return finalConfig, nil
}

// LoadFromBytes parses YAML configuration, validates it against the generated
// schema, applies defaults and validates semantics.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var raw map[string]interface{}
	if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	return finish(expanded, raw)
}

// LoadFromTOML parses TOML configuration with the same pipeline as LoadFromBytes.
func LoadFromTOML(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var raw map[string]interface{}
	if err := toml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
	}

	// Re-encode as YAML so inline sections are captured the same way.
	asYAML, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to normalize TOML configuration")
	}
	return finish(asYAML, raw)
}

func finish(yamlData []byte, raw map[string]interface{}) (*Config, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if raw != nil {
		if err := validator.Validate(raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
		}
	}

	var config Config
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// decodeFile reads one layer without defaults or validation.
func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML(path) {
		var raw map[string]interface{}
		if err := toml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, err
		}
		asYAML, err := yaml.Marshal(raw)
		if err != nil {
			return nil, err
		}
		expanded = string(asYAML)
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfigFile searches for an editsync configuration file from startDir up
// to the filesystem root, then falls back to the global config directory.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if globalPath := globalConfigPath(); globalPath != "" {
		return globalPath, nil
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// globalConfigPath returns the first existing config file in the global config dir.
func globalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"editsync.yml", "editsync.yaml", "editsync.toml"} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LayerFiles lists the files LoadFrom reads from startDir: the global
// config, the project config and its overrides. When no project config
// exists yet, the candidate names in startDir are returned so a watcher
// can pick up its creation.
func LayerFiles(startDir string) []string {
	var files []string
	if globalPath := globalConfigPath(); globalPath != "" {
		files = append(files, globalPath)
	}

	projectPath, err := FindConfigFile(startDir)
	projectDir := startDir
	if err == nil && projectPath != globalConfigPath() {
		files = append(files, projectPath)
		projectDir = filepath.Dir(projectPath)
	} else {
		for _, name := range configNames {
			files = append(files, filepath.Join(startDir, name))
		}
	}

	for _, name := range overrideNames {
		files = append(files, filepath.Join(projectDir, name))
	}
	return files
}
