package session

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"kcl-navigator/src/config"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/server/watcher"
	"kcl-navigator/src/server/wordmap"
)

const inheritSource = `schema Parent:
    name: str

schema Son(Parent):
    age: int
    son_name: str = name
`

const inheritPkgSource = `# instances of the inherit schemas

kids = Son {
    age = 10
}
`

func setupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func openSession(t *testing.T, root string, cfg *config.Config) *Session {
	t.Helper()
	s, err := New(root, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func location(path string, line, start, end uint32) protocol.Location {
	return protocol.Location{
		URI: uri.File(path),
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: end},
		},
	}
}

func TestOpenBuildsIndex(t *testing.T) {
	root := setupWorkspace(t, map[string]string{
		"inherit.k":     inheritSource,
		"inherit_pkg.k": inheritPkgSource,
	})
	s := openSession(t, root, nil)

	assert.Equal(t, wordmap.StateBuilt, s.Index().State())
	assert.Len(t, s.Index().Files(), 2)
	assert.False(t, s.Watching())
	assert.Equal(t, root, s.Root())
}

func TestQueriesThroughSession(t *testing.T) {
	root := setupWorkspace(t, map[string]string{
		"inherit.k":     inheritSource,
		"inherit_pkg.k": inheritPkgSource,
	})
	s := openSession(t, root, nil)
	inherit := filepath.Join(root, "inherit.k")
	pkg := filepath.Join(root, "inherit_pkg.k")
	want := []protocol.Location{location(inherit, 3, 7, 10), location(pkg, 2, 7, 10)}

	scanned, err := s.FindReferences(context.Background(), inherit, protocol.Position{Line: 3, Character: 7})
	require.NoError(t, err)
	assert.Equal(t, want, scanned)

	indexed, err := s.FindReferencesIndexed(context.Background(), inherit, protocol.Position{Line: 3, Character: 7})
	require.NoError(t, err)
	assert.Equal(t, want, indexed)

	def, err := s.GoToDefinition(context.Background(), pkg, protocol.Position{Line: 2, Character: 9})
	require.NoError(t, err)
	assert.Equal(t, location(inherit, 3, 7, 10), *def)
}

func TestFileEventsKeepIndexAndResolverCurrent(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"simple.k": "a = 1\nb = a\n"})
	cfg := config.GetDefaultConfig()
	cfg.Index.UseForReferences = true
	s := openSession(t, root, cfg)
	simple := filepath.Join(root, "simple.k")
	ctx := context.Background()

	// edit: a new use of a
	require.NoError(t, os.WriteFile(simple, []byte("a = 1\nb = a\nc = a\n"), 0644))
	require.NoError(t, s.DidChange(simple))
	refs, err := s.FindReferences(ctx, simple, protocol.Position{Line: 0, Character: 0})
	require.NoError(t, err)
	assert.Len(t, refs, 3)

	// create: another file in the same package uses a
	other := filepath.Join(root, "other.k")
	require.NoError(t, os.WriteFile(other, []byte("d = a\n"), 0644))
	require.NoError(t, s.DidCreate(other))
	refs, err = s.FindReferences(ctx, simple, protocol.Position{Line: 0, Character: 0})
	require.NoError(t, err)
	assert.Contains(t, refs, location(other, 0, 4, 5))

	// rename
	moved := filepath.Join(root, "moved.k")
	require.NoError(t, os.Rename(other, moved))
	require.NoError(t, s.DidRename(other, moved))
	refs, err = s.FindReferences(ctx, simple, protocol.Position{Line: 0, Character: 0})
	require.NoError(t, err)
	assert.Contains(t, refs, location(moved, 0, 4, 5))
	assert.NotContains(t, refs, location(other, 0, 4, 5))

	// delete
	require.NoError(t, os.Remove(moved))
	require.NoError(t, s.DidDelete(moved))
	refs, err = s.FindReferences(ctx, simple, protocol.Position{Line: 0, Character: 0})
	require.NoError(t, err)
	assert.Len(t, refs, 3)
	assert.Equal(t, []string{simple}, s.Index().Files())
}

func TestRenameAwayFromSourceExtension(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.k": "a = 1\n", "b.k": "b = a\n"})
	s := openSession(t, root, nil)

	backup := filepath.Join(root, "b.k.bak")
	require.NoError(t, os.Rename(filepath.Join(root, "b.k"), backup))
	require.NoError(t, s.DidRename(filepath.Join(root, "b.k"), backup))
	assert.Equal(t, []string{filepath.Join(root, "a.k")}, s.Index().Files())

	require.NoError(t, os.Rename(backup, filepath.Join(root, "c.k")))
	require.NoError(t, s.DidRename(backup, filepath.Join(root, "c.k")))
	assert.Equal(t, []string{filepath.Join(root, "a.k"), filepath.Join(root, "c.k")}, s.Index().Files())
}

func TestIgnoredFilesAreNotIndexed(t *testing.T) {
	root := setupWorkspace(t, map[string]string{".gitignore": "tmp/\n", "a.k": "a = 1\n"})
	s := openSession(t, root, nil)

	ignored := filepath.Join(root, "tmp", "scratch.k")
	require.NoError(t, os.MkdirAll(filepath.Dir(ignored), 0755))
	require.NoError(t, os.WriteFile(ignored, []byte("a\n"), 0644))
	require.NoError(t, s.DidCreate(ignored))
	assert.False(t, s.Index().Contains(ignored))
}

func TestIncrementalUpdatesMatchRebuild(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"main.k": "a = 1\n"})
	outside := setupWorkspace(t, map[string]string{"out.k": "zzz_out = 1\n"})
	cfg := config.GetDefaultConfig()
	cfg.Workspace.MaxDepth = 1
	s := openSession(t, root, cfg)

	extra := map[string]string{
		"node_modules/dep.k": "zzz_dep = 1\n",
		".hidden/h.k":        "zzz_hidden = 1\n",
		"one/two/deep.k":     "zzz_deep = 1\n",
		"one/lib.k":          "zzz_lib = 1\n",
	}
	for rel, content := range extra {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		require.NoError(t, s.DidChange(path))
	}
	require.NoError(t, s.DidCreate(filepath.Join(outside, "out.k")))
	require.NoError(t, s.DidRename(filepath.Join(root, "main.k"), filepath.Join(outside, "out.k")))
	require.NoError(t, os.Rename(filepath.Join(root, "one", "lib.k"), filepath.Join(root, "one", "lib2.k")))
	require.NoError(t, s.DidRename(filepath.Join(root, "one", "lib.k"), filepath.Join(root, "one", "lib2.k")))
	require.NoError(t, s.DidChange(filepath.Join(root, "main.k")))

	for _, word := range []string{"zzz_dep", "zzz_hidden", "zzz_deep", "zzz_out"} {
		_, ok := s.Index().Get(word)
		assert.False(t, ok, word)
	}

	fresh := wordmap.New(wordmap.Options{Scan: s.scan, Workers: 1})
	require.NoError(t, fresh.Build(context.Background(), root))
	assert.Equal(t, fresh.Files(), s.Index().Files())
	assert.Equal(t, []string{filepath.Join(root, "main.k"), filepath.Join(root, "one", "lib2.k")}, s.Index().Files())
}

func TestIgnoreRuleChangesRebuildIndex(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.k": "a = 1\n", "scratch.k": "b = a\n"})
	s := openSession(t, root, nil)
	scratch := filepath.Join(root, "scratch.k")
	require.True(t, s.Index().Contains(scratch))

	ignoreFile := filepath.Join(root, ".gitignore")
	require.NoError(t, os.WriteFile(ignoreFile, []byte("scratch.k\n"), 0644))
	s.HandleEvents([]watcher.FileChangeEvent{{Path: ignoreFile, Operation: watcher.OpCreate}})
	assert.False(t, s.Index().Contains(scratch))
	require.NoError(t, s.DidChange(scratch))
	assert.False(t, s.Index().Contains(scratch))

	require.NoError(t, os.Remove(ignoreFile))
	require.NoError(t, s.DidDelete(ignoreFile))
	assert.True(t, s.Index().Contains(scratch))
}

func TestEventsAfterCloseLeaveIndexEmpty(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.k": "a = 1\n"})
	s, err := New(root, nil)
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	a := filepath.Join(root, "a.k")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if stderrors.Is(s.DidChange(a), ErrClosed) {
					return
				}
			}
		}()
	}
	require.NoError(t, s.Close())
	wg.Wait()

	s.HandleEvents([]watcher.FileChangeEvent{{Path: a, Operation: watcher.OpWrite}})
	assert.Empty(t, s.Index().Files())
	assert.ErrorIs(t, s.DidRename(a, a), ErrClosed)
	assert.ErrorIs(t, s.DidDelete(a), ErrClosed)
}

func TestHandleEvents(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.k": "a = 1\n"})
	s := openSession(t, root, nil)
	a := filepath.Join(root, "a.k")
	b := filepath.Join(root, "b.k")
	require.NoError(t, os.WriteFile(b, []byte("b = a\n"), 0644))

	s.HandleEvents([]watcher.FileChangeEvent{
		{Path: a, Operation: watcher.OpRename},
		{Path: b, Operation: watcher.OpCreate},
		{Path: filepath.Join(root, "missing.k"), Operation: watcher.OpWrite},
	})
	assert.Equal(t, []string{b}, s.Index().Files())
}

func TestWatcherUpdatesIndex(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.k": "a = 1\n"})
	cfg := config.GetDefaultConfig()
	cfg.Index.Watch = true
	cfg.Index.Debounce = 20 * time.Millisecond
	s := openSession(t, root, cfg)
	require.True(t, s.Watching())

	b := filepath.Join(root, "b.k")
	require.NoError(t, os.WriteFile(b, []byte("watched = 1\n"), 0644))
	assert.Eventually(t, func() bool {
		_, ok := s.Index().Get("watched")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestClosedSession(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.k": "a = 1\n"})
	s, err := New(root, nil)
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.GoToDefinition(context.Background(), filepath.Join(root, "a.k"), protocol.Position{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.FindReferences(context.Background(), filepath.Join(root, "a.k"), protocol.Position{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.DidChange(filepath.Join(root, "a.k")), ErrClosed)
	assert.ErrorIs(t, s.Open(context.Background()), ErrClosed)
	assert.Equal(t, wordmap.StateEmpty, s.Index().State())
}

func TestOpenMissingRoot(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	assert.True(t, errors.IsIOError(s.Open(context.Background())))
}

func TestOnApply(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.k": "a = 1\n"})
	s := openSession(t, root, nil)

	var got []watcher.FileChangeEvent
	s.OnApply(func(events []watcher.FileChangeEvent) { got = events })
	events := []watcher.FileChangeEvent{{Path: filepath.Join(root, "a.k"), Operation: watcher.OpRemove}}
	s.HandleEvents(events)
	assert.Equal(t, events, got)
	assert.Empty(t, s.Index().Files())
}
