package references

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cloudflare/ahocorasick"
	"go.lsp.dev/protocol"

	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/internal/project"
	"kcl-navigator/src/server/wordmap"
	"kcl-navigator/src/server/words"
)

// CandidateSource yields every textual occurrence of a word across the
// workspace and in queryPath, which may lie outside the scanned file set.
type CandidateSource interface {
	Candidates(ctx context.Context, name, queryPath string) ([]wordmap.Location, error)
}

// ScanSource rescans the workspace on every query
type ScanSource struct {
	Root    string
	Options project.ScanOptions
}

// Candidates implements CandidateSource
func (s *ScanSource) Candidates(ctx context.Context, name, queryPath string) ([]wordmap.Location, error) {
	return MatchWord(ctx, s.Root, s.Options, name, queryPath)
}

// IndexSource answers from a prebuilt word map. A query file the map does not
// hold is tokenized on the spot.
type IndexSource struct {
	Index *wordmap.WordMap
}

// Candidates implements CandidateSource
func (s *IndexSource) Candidates(ctx context.Context, name, queryPath string) ([]wordmap.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locs, _ := s.Index.Get(name)
	if queryPath == "" || s.Index.Contains(queryPath) {
		return locs, nil
	}
	extra, err := matchFile(queryPath, name, ahocorasick.NewStringMatcher([]string{name}))
	if err != nil {
		return nil, err
	}
	return append(locs, extra...), nil
}

// MatchWord scans every source file under root, plus any of extra the scan
// does not list, and returns each token spelled exactly name. A file is only
// tokenized when its raw bytes contain name. Unreadable files are skipped and
// reported as a *errors.ScanError alongside whatever was found.
func MatchWord(ctx context.Context, root string, opts project.ScanOptions, name string, extra ...string) ([]wordmap.Location, error) {
	files, err := project.ScanWorkspaceFiles(root, opts)
	if err != nil {
		return nil, err
	}
	files = withExtra(files, extra)

	matcher := ahocorasick.NewStringMatcher([]string{name})
	var skipped errors.ScanCollector
	var out []wordmap.Location
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		locs, err := matchFile(path, name, matcher)
		if err != nil {
			skipped.Add(err)
			continue
		}
		out = append(out, locs...)
	}
	return out, skipped.Err()
}

// matchFile returns the tokens of path spelled exactly name
func matchFile(path, name string, matcher *ahocorasick.Matcher) ([]wordmap.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}
	if len(matcher.Match(data)) == 0 {
		prefilterSkips.Inc()
		return nil, nil
	}
	var out []wordmap.Location
	for i, line := range words.SplitLines(string(data)) {
		for _, w := range words.LineToWords(line) {
			if w.Word != name {
				continue
			}
			out = append(out, wordmap.Location{
				Path: path,
				Range: protocol.Range{
					Start: protocol.Position{Line: uint32(i), Character: uint32(w.Start)},
					End:   protocol.Position{Line: uint32(i), Character: uint32(w.End)},
				},
			})
		}
	}
	return out, nil
}

func withExtra(files, extra []string) []string {
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		seen[f] = struct{}{}
	}
	for _, path := range extra {
		if path == "" {
			continue
		}
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	return files
}
