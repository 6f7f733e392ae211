// Package session ties one workspace root to its word map, resolver cache and
// optional file watcher, and routes file events to all of them.
package session

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"

	"go.lsp.dev/protocol"

	"kcl-navigator/src/config"
	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/internal/gitignore"
	"kcl-navigator/src/internal/project"
	"kcl-navigator/src/server/references"
	"kcl-navigator/src/server/resolver"
	"kcl-navigator/src/server/watcher"
	"kcl-navigator/src/server/wordmap"
	"kcl-navigator/src/utils"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = stderrors.New("session closed")

// Session owns the navigation state of one workspace root
type Session struct {
	mu      sync.Mutex
	root    string
	cfg     *config.Config
	scan    project.ScanOptions
	index   *wordmap.WordMap
	cache   *resolver.Cache
	finder  *references.Finder
	ignore  *gitignore.Manager
	watcher *watcher.FileWatcher
	onApply func([]watcher.FileChangeEvent)
	opened  bool
	closed  bool
}

// New creates a session for root. Nothing is read until Open or the first query.
func New(root string, cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	root = utils.NormalizePath(root)

	scan := project.ScanOptions{
		Extensions:       cfg.Workspace.Extensions,
		RespectGitignore: cfg.Workspace.RespectGitignore,
		MaxDepth:         cfg.Workspace.MaxDepth,
	}
	cache, err := resolver.NewCache(cfg.Resolver.CacheSize)
	if err != nil {
		return nil, err
	}
	index := wordmap.New(wordmap.Options{Scan: scan, Workers: cfg.Index.Workers})
	finder := references.NewFinder(root, scan, resolver.New(root, cache), nil, references.Options{
		Strict: cfg.Errors.Strict,
	})

	s := &Session{
		root:   root,
		cfg:    cfg,
		scan:   scan,
		index:  index,
		cache:  cache,
		finder: finder,
	}
	s.ignore = gitignore.NewManager(root)
	s.ignore.SetEnabled(scan.RespectGitignore)
	return s, nil
}

// Open builds the word map and, when configured, starts watching the root.
// A partial build (some files unreadable) still opens the session and the
// *errors.ScanError is returned.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	buildErr := s.index.Build(ctx, s.root)
	if buildErr != nil {
		if _, partial := errors.AsScanError(buildErr); !partial {
			return buildErr
		}
	}

	if s.cfg.Index.Watch && s.watcher == nil {
		fw, err := watcher.NewFileWatcher(s.scan.Extensions, s.HandleEvents)
		if err != nil {
			return err
		}
		fw.SetDebounceDelay(s.cfg.Index.Debounce)
		if err := fw.AddPath(s.root); err != nil {
			_ = fw.Stop()
			return err
		}
		fw.Start()
		s.watcher = fw
	}

	s.opened = true
	stats := s.index.Stats()
	common.IndexLogger.Info("Opened %s: %d files, %d distinct words", s.root, stats.Files, stats.Words)
	return buildErr
}

// Close stops the watcher and drops all cached state. It is safe to call twice.
// Events still in flight from the watcher wait for s.mu and then see the
// session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.watcher != nil {
		err = s.watcher.Stop()
		s.watcher = nil
	}
	s.index.Reset()
	s.cache.Purge()
	return err
}

// Root returns the normalized workspace root
func (s *Session) Root() string {
	return s.root
}

// Config returns the configuration the session was created with
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Index exposes the word map
func (s *Session) Index() *wordmap.WordMap {
	return s.index
}

// OnApply registers fn to run after every batch passed to HandleEvents
func (s *Session) OnApply(fn func([]watcher.FileChangeEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onApply = fn
}

// Watching reports whether a file watcher is running
func (s *Session) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// GoToDefinition resolves the identifier at pos (protocol coordinates)
func (s *Session) GoToDefinition(ctx context.Context, path string, pos protocol.Position) (*protocol.Location, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return s.finder.GoToDefinition(ctx, path, pos)
}

// FindReferences lists every occurrence of the declaration at pos. Candidates
// come from the word map when it is built and configured for it, otherwise
// from a fresh scan.
func (s *Session) FindReferences(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	return s.findReferences(ctx, path, pos, s.cfg.Index.UseForReferences)
}

// FindReferencesIndexed is FindReferences forced onto the word map. The map is
// built first if the session has not been opened.
func (s *Session) FindReferencesIndexed(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	return s.findReferences(ctx, path, pos, true)
}

func (s *Session) findReferences(ctx context.Context, path string, pos protocol.Position, useIndex bool) ([]protocol.Location, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	finder := s.finder
	if useIndex {
		if s.index.State() != wordmap.StateBuilt {
			if err := s.index.Build(ctx, s.root); err != nil {
				if _, partial := errors.AsScanError(err); !partial {
					return nil, err
				}
			}
		}
		finder = finder.WithSource(&references.IndexSource{Index: s.index})
	}
	return finder.FindReferences(ctx, path, pos)
}

// tracked reports whether a fresh scan of the root would list path
func (s *Session) tracked(path string) bool {
	return project.Admits(s.ignore, path, s.scan)
}

// reloadIgnoreRules drops cached .gitignore files and, since the set of source
// files may have changed, rebuilds a built word map.
func (s *Session) reloadIgnoreRules() error {
	s.ignore.ClearCache()
	if s.index.State() != wordmap.StateBuilt {
		return nil
	}
	common.IndexLogger.Info("Ignore rules changed, rebuilding %s", s.root)
	return s.index.Build(context.Background(), s.root)
}

func isIgnoreFile(path string) bool {
	return filepath.Base(path) == ".gitignore"
}

// DidCreate indexes a new file
func (s *Session) DidCreate(path string) error {
	return s.DidChange(path)
}

// DidChange re-indexes an edited file and drops its cached parse
func (s *Session) DidChange(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	path = utils.NormalizePath(path)
	if isIgnoreFile(path) {
		return s.reloadIgnoreRules()
	}
	s.cache.Invalidate(path)
	if !s.tracked(path) {
		s.index.DeleteFile(path)
		return nil
	}
	return s.index.AddOrUpdateFile(path)
}

// DidRename moves the entries of oldPath to newPath. A rename that changes
// whether the file counts as source turns into a delete or an add.
func (s *Session) DidRename(oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	oldPath, newPath = utils.NormalizePath(oldPath), utils.NormalizePath(newPath)
	if isIgnoreFile(oldPath) || isIgnoreFile(newPath) {
		return s.reloadIgnoreRules()
	}
	s.cache.Invalidate(oldPath)
	s.cache.Invalidate(newPath)

	switch {
	case !s.tracked(newPath):
		s.index.DeleteFile(oldPath)
		s.index.DeleteFile(newPath)
		return nil
	case s.index.Contains(oldPath):
		s.index.RenameFile(oldPath, newPath)
		return nil
	default:
		return s.index.AddOrUpdateFile(newPath)
	}
}

// DidDelete drops a removed file
func (s *Session) DidDelete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	path = utils.NormalizePath(path)
	if isIgnoreFile(path) {
		return s.reloadIgnoreRules()
	}
	s.cache.Invalidate(path)
	s.index.DeleteFile(path)
	return nil
}

// HandleEvents applies a batch of watcher events. fsnotify reports a rename as
// a rename of the old name plus a create of the new one, so renames are
// handled as delete and add.
func (s *Session) HandleEvents(events []watcher.FileChangeEvent) {
	for _, e := range events {
		var err error
		switch e.Operation {
		case watcher.OpCreate, watcher.OpWrite:
			err = s.DidChange(e.Path)
		case watcher.OpRemove, watcher.OpRename:
			err = s.DidDelete(e.Path)
		}
		if err != nil {
			if stderrors.Is(err, ErrClosed) {
				return
			}
			common.WatchLogger.Warn("Failed to apply %s event for %s: %v", e.Operation, e.Path, err)
			continue
		}
		common.WatchLogger.Debug("Applied %s event for %s", e.Operation, e.Path)
	}

	s.mu.Lock()
	fn := s.onApply
	s.mu.Unlock()
	if fn != nil {
		fn(events)
	}
}
