package project

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/internal/gitignore"
)

// DefaultExtensions are the source extensions scanned when none are configured
var DefaultExtensions = []string{".k"}

// ScanOptions controls which files ScanWorkspaceFiles returns
type ScanOptions struct {
	Extensions       []string
	RespectGitignore bool
	// MaxDepth limits directory depth below the root; 0 means unlimited.
	MaxDepth int
}

// DefaultScanOptions returns options for a plain KCL workspace
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Extensions:       DefaultExtensions,
		RespectGitignore: true,
	}
}

// ScanWorkspaceFiles lists the source files under root as absolute, cleaned paths
// in lexical order. Unreadable subdirectories are skipped; an unreadable root is
// an error. A root that is a file yields just that file when its extension matches.
func ScanWorkspaceFiles(root string, opts ScanOptions) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewIOError("resolve", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.NewIOError("stat", absRoot, err)
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	if !info.IsDir() {
		if HasExtension(absRoot, extensions) {
			return []string{absRoot}, nil
		}
		return nil, nil
	}

	walker := gitignore.NewWalker(absRoot)
	walker.SetEnabled(opts.RespectGitignore)

	var files []string
	err = walker.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return errors.NewIOError("walk", path, err)
			}
			common.IndexLogger.Debug("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if gitignore.ShouldSkipDirectory(d.Name()) {
				return fs.SkipDir
			}
			if opts.MaxDepth > 0 && depth(absRoot, path) > opts.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() && HasExtension(path, extensions) {
			files = append(files, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Admits reports whether ScanWorkspaceFiles over ign's root with opts would
// list path. The walk's gitignore handling follows ign.IsEnabled.
func Admits(ign *gitignore.Manager, path string, opts ScanOptions) bool {
	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if !HasExtension(path, extensions) || ign.Excludes(path) {
		return false
	}
	path = filepath.Clean(path)
	if path == ign.Root() {
		return true
	}
	return opts.MaxDepth <= 0 || depth(ign.Root(), filepath.Dir(path)) <= opts.MaxDepth
}

// HasExtension reports whether path ends with one of extensions
func HasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, validExt := range extensions {
		if strings.EqualFold(ext, validExt) {
			return true
		}
	}
	return false
}

func depth(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
