package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"kcl-navigator/src/internal/common"
)

// Config contains kcl-navigator configuration
type Config struct {
	Workspace *WorkspaceConfig `yaml:"workspace"`
	Index     *IndexConfig     `yaml:"index"`
	Resolver  *ResolverConfig  `yaml:"resolver"`
	Errors    *ErrorsConfig    `yaml:"errors"`
	Log       *LogConfig       `yaml:"log"`
}

// WorkspaceConfig controls workspace file discovery
type WorkspaceConfig struct {
	Extensions       []string `yaml:"extensions"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	MaxDepth         int      `yaml:"max_depth,omitempty"`
}

// IndexConfig controls the word map
type IndexConfig struct {
	Workers  int           `yaml:"workers"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
	// UseForReferences makes find-references draw candidates from the word map
	// instead of a fresh scan.
	UseForReferences bool `yaml:"use_for_references"`
}

// ResolverConfig controls the symbol resolver
type ResolverConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// ErrorsConfig controls how partial failures surface
type ErrorsConfig struct {
	// Strict discards partial results when any file had to be skipped.
	Strict bool `yaml:"strict"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig loads configuration from a YAML file. Sections missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.fillDefaults()

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultConfig generates a default configuration file
func GenerateDefaultConfig(path string) error {
	return SaveConfig(GetDefaultConfig(), path)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if len(config.Workspace.Extensions) == 0 {
		return fmt.Errorf("workspace.extensions must not be empty")
	}
	for _, ext := range config.Workspace.Extensions {
		if len(ext) < 2 || ext[0] != '.' {
			return fmt.Errorf("workspace extension %q must start with '.'", ext)
		}
	}
	if config.Workspace.MaxDepth < 0 {
		return fmt.Errorf("workspace.max_depth must not be negative")
	}
	if config.Index.Workers < 1 {
		return fmt.Errorf("index.workers must be at least 1")
	}
	if config.Index.Debounce < 0 {
		return fmt.Errorf("index.debounce must not be negative")
	}
	if config.Resolver.CacheSize < 1 {
		return fmt.Errorf("resolver.cache_size must be at least 1")
	}
	if _, err := common.ParseLogLevel(config.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := GetDefaultConfig()
	if c.Workspace == nil {
		c.Workspace = def.Workspace
	}
	if c.Index == nil {
		c.Index = def.Index
	}
	if c.Resolver == nil {
		c.Resolver = def.Resolver
	}
	if c.Errors == nil {
		c.Errors = def.Errors
	}
	if c.Log == nil {
		c.Log = def.Log
	}
}

// LogLevel returns the configured log level, INFO when unparsable
func (c *Config) LogLevel() common.LogLevel {
	if c.Log == nil {
		return common.LogInfo
	}
	level, err := common.ParseLogLevel(c.Log.Level)
	if err != nil {
		return common.LogInfo
	}
	return level
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kcl-navigator", "config.yaml")
}

// WorkspaceConfigName is looked up in the workspace root before the home config
const WorkspaceConfigName = ".kcl-navigator.yaml"

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Workspace: &WorkspaceConfig{
			Extensions:       []string{".k"},
			RespectGitignore: true,
		},
		Index: &IndexConfig{
			Workers:  4,
			Debounce: 300 * time.Millisecond,
		},
		Resolver: &ResolverConfig{
			CacheSize: 512,
		},
		Errors: &ErrorsConfig{},
		Log: &LogConfig{
			Level: "info",
		},
	}
}

// LoadOrDefault tries, in order, the explicit path, $KCL_NAVIGATOR_CONFIG, the
// workspace-local file and the home config, then falls back to defaults. An
// explicit path that fails to load is an error.
func LoadOrDefault(path, workspaceRoot string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}

	candidates := []string{common.EnvOrDefault(common.ConfigEnvVar, "")}
	if workspaceRoot != "" {
		candidates = append(candidates, filepath.Join(workspaceRoot, WorkspaceConfigName))
	}
	candidates = append(candidates, GetDefaultConfigPath())

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		loaded, err := LoadConfig(candidate)
		if err != nil {
			common.CLILogger.Warn("Ignoring config %s: %v", candidate, err)
			continue
		}
		common.CLILogger.Debug("Loaded config from %s", candidate)
		return loaded, nil
	}

	return GetDefaultConfig(), nil
}
