package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateAndGetWorkingDir validates and normalizes a directory argument.
// If workingDir is empty, it returns the current working directory.
func ValidateAndGetWorkingDir(workingDir string) (string, error) {
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		return wd, nil
	}

	expandedPath, err := ExpandPath(workingDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand working directory path '%s': %w", workingDir, err)
	}

	absPath, err := filepath.Abs(expandedPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for working directory '%s': %w", expandedPath, err)
	}

	if info, err := os.Stat(absPath); err != nil {
		return "", fmt.Errorf("working directory '%s' does not exist: %w", absPath, err)
	} else if !info.IsDir() {
		return "", fmt.Errorf("working directory '%s' is not a directory", absPath)
	}

	return absPath, nil
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if path == "~" {
		return homeDir, nil
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}
