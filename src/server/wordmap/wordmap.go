// Package wordmap keeps a workspace-wide map from identifier spelling to every
// place that spelling occurs. It is purely lexical and is kept current by
// explicit file events; it never watches the filesystem itself.
package wordmap

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"golang.org/x/sync/errgroup"

	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/internal/project"
	"kcl-navigator/src/server/words"
)

// DefaultWorkers bounds concurrent tokenization during Build
const DefaultWorkers = 4

// Location is one occurrence of a word. Lines and characters are 0-based,
// characters count runes, and the range is half-open.
type Location struct {
	Path  string         `json:"path"`
	Range protocol.Range `json:"range"`
}

// ToProtocol converts to an LSP location with a file:// URI
func (l Location) ToProtocol() protocol.Location {
	return protocol.Location{URI: uri.File(l.Path), Range: l.Range}
}

// State reports whether the map has been built
type State int

const (
	StateEmpty State = iota
	StateBuilt
)

func (s State) String() string {
	if s == StateBuilt {
		return "built"
	}
	return "empty"
}

// Stats summarises the map contents
type Stats struct {
	Files       int           `json:"files"`
	Words       int           `json:"words"`
	Occurrences int           `json:"occurrences"`
	LastBuild   time.Duration `json:"last_build"`
}

// Options configures how Build discovers and tokenizes files
type Options struct {
	Scan    project.ScanOptions
	Workers int
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{Scan: project.DefaultScanOptions(), Workers: DefaultWorkers}
}

// WordMap is safe for concurrent use: lookups share a read lock, every
// mutation takes the write lock.
type WordMap struct {
	mu        sync.RWMutex
	opts      Options
	root      string
	words     map[string][]Location
	byFile    map[string]map[string]struct{}
	state     State
	lastBuild time.Duration
}

// New creates an empty word map
func New(opts Options) *WordMap {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &WordMap{
		opts:   opts,
		words:  make(map[string][]Location),
		byFile: make(map[string]map[string]struct{}),
	}
}

type fileWords struct {
	path    string
	entries []entry
}

type entry struct {
	word string
	loc  Location
}

// tokenizeFile reads path and returns every word occurrence in order
func tokenizeFile(path string) ([]entry, error) {
	lines, err := words.ReadLines(path)
	if err != nil {
		return nil, err
	}
	var entries []entry
	for i, line := range lines {
		for _, w := range words.LineToWords(line) {
			entries = append(entries, entry{
				word: w.Word,
				loc: Location{
					Path: path,
					Range: protocol.Range{
						Start: protocol.Position{Line: uint32(i), Character: uint32(w.Start)},
						End:   protocol.Position{Line: uint32(i), Character: uint32(w.End)},
					},
				},
			})
		}
	}
	return entries, nil
}

// Build scans root and replaces the whole map with the words found there.
// Files are tokenized concurrently and inserted in path order, so the result
// does not depend on scheduling. Unreadable files are skipped and reported
// through a *errors.ScanError after the map has been replaced.
func (m *WordMap) Build(ctx context.Context, root string) error {
	start := time.Now()
	files, err := project.ScanWorkspaceFiles(root, m.opts.Scan)
	if err != nil {
		return err
	}

	results := make([]fileWords, len(files))
	skipped := make([]error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := tokenizeFile(path)
			if err != nil {
				skipped[i] = err
				return nil
			}
			results[i] = fileWords{path: path, entries: entries}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wordsByName := make(map[string][]Location)
	byFile := make(map[string]map[string]struct{})
	var collector errors.ScanCollector
	for i, fw := range results {
		if skipped[i] != nil {
			common.IndexLogger.Warn("Skipping %s: %v", files[i], skipped[i])
			collector.Add(skipped[i])
			continue
		}
		insert(wordsByName, byFile, fw.path, fw.entries)
	}

	elapsed := time.Since(start)
	m.mu.Lock()
	m.root = filepath.Clean(root)
	m.words = wordsByName
	m.byFile = byFile
	m.state = StateBuilt
	m.lastBuild = elapsed
	m.mu.Unlock()

	buildDuration.Observe(elapsed.Seconds())
	indexOperations.WithLabelValues("build").Inc()
	indexedFiles.Set(float64(len(byFile)))
	common.IndexLogger.Debug("Indexed %d files under %s in %v", len(byFile), root, elapsed)
	return collector.Err()
}

// insert appends entries of one file. byFile always gets a set for path, even
// for a file without words, so the file still counts as indexed.
func insert(wordsByName map[string][]Location, byFile map[string]map[string]struct{}, path string, entries []entry) {
	names := make(map[string]struct{})
	for _, e := range entries {
		wordsByName[e.word] = append(wordsByName[e.word], e.loc)
		names[e.word] = struct{}{}
	}
	byFile[path] = names
}

// AddOrUpdateFile re-tokenizes path and replaces its entries. If the file
// cannot be read the map is left untouched and an *errors.IOError is returned.
func (m *WordMap) AddOrUpdateFile(path string) error {
	path = filepath.Clean(path)
	entries, err := tokenizeFile(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(path)
	insert(m.words, m.byFile, path, entries)
	indexOperations.WithLabelValues("update").Inc()
	indexedFiles.Set(float64(len(m.byFile)))
	return nil
}

// RenameFile moves every entry of oldPath to newPath without re-reading
// anything. Entries already indexed under newPath are dropped first. Renaming a
// path that is not indexed does nothing.
func (m *WordMap) RenameFile(oldPath, newPath string) {
	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)
	if oldPath == newPath {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	names, ok := m.byFile[oldPath]
	if !ok {
		return
	}
	m.removeLocked(newPath)
	for name := range names {
		locs := m.words[name]
		for i := range locs {
			if locs[i].Path == oldPath {
				locs[i].Path = newPath
			}
		}
	}
	m.byFile[newPath] = names
	delete(m.byFile, oldPath)
	indexOperations.WithLabelValues("rename").Inc()
}

// DeleteFile removes every entry of path. Deleting a path that is not indexed
// does nothing.
func (m *WordMap) DeleteFile(path string) {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeLocked(path) {
		indexOperations.WithLabelValues("delete").Inc()
		indexedFiles.Set(float64(len(m.byFile)))
	}
}

func (m *WordMap) removeLocked(path string) bool {
	names, ok := m.byFile[path]
	if !ok {
		return false
	}
	for name := range names {
		locs := m.words[name]
		kept := locs[:0]
		for _, loc := range locs {
			if loc.Path != path {
				kept = append(kept, loc)
			}
		}
		if len(kept) == 0 {
			delete(m.words, name)
		} else {
			m.words[name] = kept
		}
	}
	delete(m.byFile, path)
	return true
}

// Get returns a copy of the occurrences of name in insertion order
func (m *WordMap) Get(name string) ([]Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locs, ok := m.words[name]
	if !ok {
		lookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	lookups.WithLabelValues("hit").Inc()
	out := make([]Location, len(locs))
	copy(out, locs)
	return out, true
}

// Files returns the indexed paths, sorted
func (m *WordMap) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]string, 0, len(m.byFile))
	for path := range m.byFile {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Contains reports whether path is indexed
func (m *WordMap) Contains(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byFile[filepath.Clean(path)]
	return ok
}

// Stats returns a snapshot of the map size
func (m *WordMap) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	occurrences := 0
	for _, locs := range m.words {
		occurrences += len(locs)
	}
	return Stats{
		Files:       len(m.byFile),
		Words:       len(m.words),
		Occurrences: occurrences,
		LastBuild:   m.lastBuild,
	}
}

// State returns StateBuilt once Build has succeeded
func (m *WordMap) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Root returns the directory of the last Build
func (m *WordMap) Root() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// Reset empties the map
func (m *WordMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = make(map[string][]Location)
	m.byFile = make(map[string]map[string]struct{})
	m.state = StateEmpty
	m.lastBuild = 0
	indexedFiles.Set(0)
}
