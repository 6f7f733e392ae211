package project

import (
	"os"
	"path/filepath"
)

// WorkspaceMarkers are files whose presence marks a workspace root
var WorkspaceMarkers = []string{"kcl.mod", "kcl.yaml", ".git"}

// FindWorkspaceRoot walks up from path (a file or directory) to the nearest
// directory holding a workspace marker. Without a marker the starting directory is
// the workspace.
func FindWorkspaceRoot(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	start := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		start = filepath.Dir(abs)
	}

	dir := start
	for {
		for _, marker := range WorkspaceMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}
