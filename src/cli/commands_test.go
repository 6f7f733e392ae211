package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"kcl-navigator/src/internal/common"
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

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func setupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(common.ConfigEnvVar, "")
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "kcl.mod"), nil, 0644))
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func resetFlags() {
	configPath = ""
	formatJSON = false
	verbose = false
	wordName = ""
	filterPattern = ""
	useIndex = false
	strict = false
}

// lockedBuffer lets a test read output while watcher callbacks write it
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func executeContext(ctx context.Context, out io.Writer, args ...string) error {
	resetFlags()
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer common.SetGlobalLevel(common.LogInfo)
	return rootCmd.ExecuteContext(ctx)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := executeContext(context.Background(), &out, args...)
	return out.String(), err
}

func TestDefinitionCommand(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"simple.k": "a = 1\nb = a\n"})
	simple := filepath.Join(root, "simple.k")

	out, err := execute(t, CmdDefinition, simple, "1", "4")
	require.NoError(t, err)
	assert.Equal(t, "simple.k:0:0-0:1\n", out)

	out, err = execute(t, CmdDefinition, simple, "1", "4", "--json")
	require.NoError(t, err)
	var loc protocol.Location
	require.NoError(t, json.Unmarshal([]byte(out), &loc))
	assert.Equal(t, uri.File(simple), loc.URI)
	assert.Equal(t, protocol.Position{Line: 0, Character: 1}, loc.Range.End)
}

func TestDefinitionNotFoundSucceeds(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"simple.k": "a = 1\nb = missing\n"})
	simple := filepath.Join(root, "simple.k")

	out, err := execute(t, CmdDefinition, simple, "1", "6")
	require.NoError(t, err)
	assert.Equal(t, "No definition found\n", out)

	out, err = execute(t, CmdDefinition, simple, "0", "1", "--json")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
}

func TestDefinitionBadArguments(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"simple.k": "a = 1\n"})
	simple := filepath.Join(root, "simple.k")

	_, err := execute(t, CmdDefinition, simple, "x", "0")
	assert.ErrorContains(t, err, "invalid line")
	_, err = execute(t, CmdDefinition, simple, "0", "x")
	assert.ErrorContains(t, err, "invalid column")
	_, err = execute(t, CmdDefinition, simple, "0")
	assert.Error(t, err)
	_, err = execute(t, CmdDefinition, filepath.Join(root, "gone.k"), "0", "0")
	assert.ErrorContains(t, err, "cannot access")
}

func TestReferencesCommand(t *testing.T) {
	root := setupWorkspace(t, map[string]string{
		"inherit.k":     inheritSource,
		"inherit_pkg.k": inheritPkgSource,
	})
	inherit := filepath.Join(root, "inherit.k")
	want := "inherit.k:3:7-3:10\ninherit_pkg.k:2:7-2:10\n"

	out, err := execute(t, CmdReferences, inherit, "3", "7")
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, err = execute(t, CmdReferences, inherit, "3", "7", "--use-index")
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, err = execute(t, CmdReferences, inherit, "3", "7", "--filter", "*_pkg.k")
	require.NoError(t, err)
	assert.Equal(t, "inherit_pkg.k:2:7-2:10\n", out)

	out, err = execute(t, CmdReferences, inherit, "3", "7", "--json")
	require.NoError(t, err)
	var locs []protocol.Location
	require.NoError(t, json.Unmarshal([]byte(out), &locs))
	require.Len(t, locs, 2)
	assert.Equal(t, uri.File(filepath.Join(root, "inherit_pkg.k")), locs[1].URI)
}

func TestReferencesNotFound(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"simple.k": "a = 1\n"})
	simple := filepath.Join(root, "simple.k")

	out, err := execute(t, CmdReferences, simple, "0", "1")
	require.NoError(t, err)
	assert.Equal(t, "No references found\n", out)

	out, err = execute(t, CmdReferences, simple, "0", "1", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestIndexCommand(t *testing.T) {
	root := setupWorkspace(t, map[string]string{
		"inherit.k":     inheritSource,
		"inherit_pkg.k": inheritPkgSource,
		"README.md":     "Son\n",
	})

	out, err := execute(t, CmdIndex, root, "--word", "Son")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed "+root)
	assert.Contains(t, out, "Files: 2,")
	assert.Contains(t, out, "Occurrences of Son: 2\ninherit.k:3:7-3:10\ninherit_pkg.k:2:7-2:10\n")

	out, err = execute(t, CmdIndex, root, "--word", "Son", "--filter", "inherit.k", "--json")
	require.NoError(t, err)
	var report indexReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, root, report.Root)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, "Son", report.Word)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, filepath.Join(root, "inherit.k"), report.Matches[0].Path)
}

func TestIndexCommandMissingRoot(t *testing.T) {
	root := setupWorkspace(t, nil)
	_, err := execute(t, CmdIndex, filepath.Join(root, "missing"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestIndexCommandUsesWorkspaceConfig(t *testing.T) {
	root := setupWorkspace(t, map[string]string{
		".kcl-navigator.yaml": "workspace:\n  extensions: [\".kcl\"]\n",
		"a.k":                 "a = 1\n",
		"b.kcl":               "b = 1\n",
	})

	out, err := execute(t, CmdIndex, root, "--json")
	require.NoError(t, err)
	var report indexReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Files)
}

func TestWordsCommand(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"simple.k": "a = 1\n\nb = a # note\n"})
	simple := filepath.Join(root, "simple.k")

	out, err := execute(t, CmdWords, simple)
	require.NoError(t, err)
	assert.Equal(t, "0: a[0,1)\n2: b[0,1) a[4,5) note[8,12)\n", out)

	out, err = execute(t, CmdWords, simple, "--json")
	require.NoError(t, err)
	var lines []lineWords
	require.NoError(t, json.Unmarshal([]byte(out), &lines))
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[1].Line)
	assert.Len(t, lines[1].Words, 3)

	_, err = execute(t, CmdWords, filepath.Join(root, "gone.k"))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, CmdVersion)
	require.NoError(t, err)
	assert.Equal(t, "kcl-navigator 0.1.0\n", out)

	out, err = execute(t, CmdVersion, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")

	out, err = execute(t, CmdVersion, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "0.1.0"`)
}

func TestWatchCommand(t *testing.T) {
	root := setupWorkspace(t, map[string]string{
		".kcl-navigator.yaml": "index:\n  debounce: 20ms\n",
		"a.k":                 "a = 1\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- executeContext(ctx, out, CmdWatch, root) }()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Watching "+root))
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.k"), []byte("b = a\n"), 0644))
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("index: 2 files"))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
