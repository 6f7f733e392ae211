// Package configloader resolves the workspace root and configuration for a
// command invocation.
package configloader

import (
	"fmt"
	"os"

	"kcl-navigator/src/config"
	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/project"
)

// Loaded is the outcome of a load: the configuration and the workspace root
// it applies to.
type Loaded struct {
	Config *config.Config
	Root   string
}

// LoadForFile finds the workspace containing target (a file or directory),
// loads its configuration and applies the configured log level. verbose
// forces debug logging.
func LoadForFile(configPath, target string, verbose bool) (*Loaded, error) {
	expanded, err := common.ExpandPath(target)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(expanded); err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", target, err)
	}
	return load(configPath, project.FindWorkspaceRoot(expanded), verbose)
}

// LoadForRoot treats dir (the current directory when empty) as the workspace
// root, as index and watch do.
func LoadForRoot(configPath, dir string, verbose bool) (*Loaded, error) {
	root, err := common.ValidateAndGetWorkingDir(dir)
	if err != nil {
		return nil, err
	}
	return load(configPath, root, verbose)
}

func load(configPath, root string, verbose bool) (*Loaded, error) {
	if configPath != "" {
		expanded, err := common.ExpandPath(configPath)
		if err != nil {
			return nil, err
		}
		configPath = expanded
	}
	cfg, err := config.LoadOrDefault(configPath, root)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel()
	if verbose {
		level = common.LogDebug
	}
	common.SetGlobalLevel(level)
	common.CLILogger.Debug("Workspace root %s", root)

	return &Loaded{Config: cfg, Root: root}, nil
}
