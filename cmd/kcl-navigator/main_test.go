package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"kcl-navigator"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func TestRunMainExitCodes(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KCL_NAVIGATOR_CONFIG", "")
	root := t.TempDir()
	simple := filepath.Join(root, "simple.k")
	require.NoError(t, os.WriteFile(filepath.Join(root, "kcl.mod"), nil, 0644))
	require.NoError(t, os.WriteFile(simple, []byte("a = 1\nb = missing\n"), 0644))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"version", []string{"version"}, 0},
		{"unknown command", []string{"no-such-command"}, 1},
		{"definition found", []string{"definition", simple, "1", "0"}, 0},
		{"definition not found", []string{"definition", simple, "1", "5"}, 0},
		{"missing file", []string{"definition", filepath.Join(root, "gone.k"), "0", "0"}, 1},
		{"bad position", []string{"references", simple, "a", "0"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)
			assert.Equal(t, tt.want, runMain())
		})
	}
}
