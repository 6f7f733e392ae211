// Package gitignore provides gitignore-aware walking and filtering utilities.
package gitignore

import (
	"path/filepath"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
)

// Manager answers ignore queries for paths below rootDir. Every .gitignore between
// rootDir and the path's directory is consulted, each relative to its own directory.
type Manager struct {
	cache   map[string]*ignore.GitIgnore
	cacheMu sync.RWMutex
	rootDir string
	enabled bool
}

func NewManager(rootDir string) *Manager {
	if abs, err := filepath.Abs(rootDir); err == nil {
		rootDir = abs
	}
	return &Manager{
		cache:   make(map[string]*ignore.GitIgnore),
		rootDir: filepath.Clean(rootDir),
		enabled: true,
	}
}

// Root returns the absolute directory the manager answers for
func (m *Manager) Root() string {
	return m.rootDir
}

func (m *Manager) SetEnabled(enabled bool) {
	m.enabled = enabled
}

func (m *Manager) IsEnabled() bool {
	return m.enabled
}

func (m *Manager) ShouldIgnore(path string, isDir bool) bool {
	if !m.enabled {
		return false
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if absPath == m.rootDir || !isWithin(m.rootDir, absPath) {
		return false
	}

	for _, dir := range m.chain(filepath.Dir(absPath)) {
		gi := m.getOrLoadGitIgnore(dir)
		if gi == nil {
			continue
		}
		rel, err := filepath.Rel(dir, absPath)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if gi.MatchesPath(rel) || (isDir && gi.MatchesPath(rel+"/")) {
			return true
		}
	}

	return false
}

// chain lists rootDir and every directory down to dir, outermost first.
func (m *Manager) chain(dir string) []string {
	var dirs []string
	for {
		dirs = append(dirs, dir)
		if dir == m.rootDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}

func (m *Manager) getOrLoadGitIgnore(dir string) *ignore.GitIgnore {
	m.cacheMu.RLock()
	if gi, exists := m.cache[dir]; exists {
		m.cacheMu.RUnlock()
		return gi
	}
	m.cacheMu.RUnlock()

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if gi, exists := m.cache[dir]; exists {
		return gi
	}

	// A missing or unreadable file caches as nil so it is not retried.
	gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		gi = nil
	}
	m.cache[dir] = gi
	return gi
}

func (m *Manager) ClearCache() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache = make(map[string]*ignore.GitIgnore)
}

var defaultPatterns = []string{
	".git",
	".svn",
	".hg",
	".bzr",
	"node_modules",
	"vendor",
	"__pycache__",
	".DS_Store",
	"Thumbs.db",
	".idea",
	".vscode",
	"*.swp",
	"*.swo",
	"*~",
	".#*",
}

func (m *Manager) ShouldIgnoreDefault(path string) bool {
	return matchesDefault(filepath.Base(path))
}

func matchesDefault(base string) bool {
	for _, pattern := range defaultPatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Excludes reports whether a Walker over rootDir never reaches path: it lies
// outside rootDir, below a skipped directory, or matches an ignore pattern.
func (m *Manager) Excludes(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	if absPath == m.rootDir {
		return false
	}
	if !isWithin(m.rootDir, absPath) {
		return true
	}
	return hasSkippedComponent(m.rootDir, absPath) ||
		m.ShouldIgnoreDefault(absPath) ||
		m.ShouldIgnore(absPath, false)
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
