package gitignore

import (
	"io/fs"
	"path/filepath"
	"strings"
)

type Walker struct {
	manager *Manager
}

func NewWalker(rootDir string) *Walker {
	return &Walker{
		manager: NewManager(rootDir),
	}
}

// WalkDir behaves like filepath.WalkDir but never visits ignored entries. Ignored
// directories are skipped as a whole.
func (w *Walker) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fn(path, d, err)
		}

		if d != nil && path != root {
			if w.manager.ShouldIgnoreDefault(path) || w.manager.ShouldIgnore(path, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		return fn(path, d, err)
	})
}

func (w *Walker) SetEnabled(enabled bool) {
	w.manager.SetEnabled(enabled)
}

func ShouldSkipDirectory(name string) bool {
	skipDirs := []string{
		".git", ".svn", ".hg", ".bzr",
		"node_modules", "vendor",
		"__pycache__", "target",
		"build", "dist", "out",
		".idea", ".vscode",
	}

	for _, skip := range skipDirs {
		if name == skip {
			return true
		}
	}

	return strings.HasPrefix(name, ".") && name != "."
}

func hasSkippedComponent(rootDir, path string) bool {
	rel, err := filepath.Rel(rootDir, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if ShouldSkipDirectory(part) || matchesDefault(part) {
			return true
		}
	}
	return false
}
