package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.lsp.dev/protocol"

	"kcl-navigator/src/server/wordmap"
	"kcl-navigator/src/utils/jsonutil"
	"kcl-navigator/src/utils/lspconv"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	pathColor   = color.New(color.FgGreen)
	rangeColor  = color.New(color.FgYellow)
	mutedColor  = color.New(color.Faint)
)

func printJSON(w io.Writer, v any) error {
	return jsonutil.Write(w, v)
}

func printLine(w io.Writer, text string) {
	fmt.Fprintln(w, text)
}

func printHeader(w io.Writer, format string, args ...any) {
	headerColor.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}

func printMuted(w io.Writer, format string, args ...any) {
	mutedColor.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}

// displayPath shows path relative to root when it lives below it
func displayPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rel
	}
	return path
}

// printLocation writes one "path:range" line
func printLocation(w io.Writer, root string, path string, r protocol.Range) {
	pathColor.Fprint(w, displayPath(root, path))
	fmt.Fprint(w, ":")
	rangeColor.Fprint(w, lspconv.FormatRange(r))
	fmt.Fprintln(w)
}

func printLocations(w io.Writer, root string, locs []protocol.Location) {
	for _, loc := range locs {
		printLocation(w, root, lspconv.LocationPath(loc), loc.Range)
	}
}

func printOccurrences(w io.Writer, root string, locs []wordmap.Location) {
	for _, loc := range locs {
		printLocation(w, root, loc.Path, loc.Range)
	}
}

// syncWriter serializes output from watcher callbacks
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
