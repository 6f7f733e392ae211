// Package references answers go-to-definition and find-references queries by
// cross-checking textual matches against the declaration the resolver picks.
package references

import (
	"context"
	"path/filepath"
	"time"

	"go.lsp.dev/protocol"

	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/internal/project"
	"kcl-navigator/src/server/position"
	"kcl-navigator/src/server/resolver"
	"kcl-navigator/src/server/words"
	"kcl-navigator/src/utils"
	"kcl-navigator/src/utils/lspconv"
)

// Options tunes failure handling
type Options struct {
	// Strict turns any skipped file into a failed query with no results.
	Strict bool
}

// Finder runs queries against one workspace root
type Finder struct {
	root     string
	scan     project.ScanOptions
	resolver *resolver.Resolver
	source   CandidateSource
	opts     Options
}

// NewFinder creates a finder. A nil source means a fresh scan per query.
func NewFinder(root string, scan project.ScanOptions, r *resolver.Resolver, source CandidateSource, opts Options) *Finder {
	root = utils.NormalizePath(root)
	if r == nil {
		r = resolver.New(root, nil)
	}
	if source == nil {
		source = &ScanSource{Root: root, Options: scan}
	}
	return &Finder{root: root, scan: scan, resolver: r, source: source, opts: opts}
}

// WithSource returns a copy of f that draws candidates from source
func (f *Finder) WithSource(source CandidateSource) *Finder {
	clone := *f
	clone.source = source
	return &clone
}

// Root returns the workspace root
func (f *Finder) Root() string {
	return f.root
}

// Program resolves every workspace file plus path, which may live outside the
// workspace or be excluded by the scan options.
func (f *Finder) Program(ctx context.Context, path string) (*resolver.Program, error) {
	files, err := project.ScanWorkspaceFiles(f.root, f.scan)
	if err != nil {
		return nil, err
	}
	if path != "" {
		files = append(files, path)
	}
	return f.resolver.Resolve(ctx, files)
}

// GoToDefinition returns the declaration the identifier at pos refers to. pos
// uses protocol coordinates. A *errors.NotFoundError means there is nothing to
// jump to.
func (f *Finder) GoToDefinition(ctx context.Context, path string, pos protocol.Position) (*protocol.Location, error) {
	start := time.Now()
	defer observe("definition", start)

	path = utils.NormalizePath(path)
	prog, skipped, err := f.program(ctx, path)
	if err != nil {
		return nil, record("definition", err)
	}
	decl, err := prog.Lookup(position.ToInternal(position.FromProtocol(path, pos)))
	if err != nil {
		return nil, record("definition", err)
	}
	if err := skipped.Err(); err != nil {
		if f.opts.Strict {
			return nil, record("definition", err)
		}
		common.ResolveLogger.Warn("Definition of %s resolved with skipped files: %v", decl.Name, err)
	}

	loc := lspconv.ToLocation(decl.Path, decl.Start, decl.End)
	record("definition", nil)
	return &loc, nil
}

// FindReferences returns every occurrence of the identifier at pos that
// resolves to the same declaration, the declaration itself included, sorted by
// file, line and column. When files had to be skipped the error is a
// *errors.ScanError and the results cover the rest of the workspace, unless
// the finder is strict.
func (f *Finder) FindReferences(ctx context.Context, path string, pos protocol.Position) ([]protocol.Location, error) {
	start := time.Now()
	defer observe("references", start)

	path = utils.NormalizePath(path)
	prog, skipped, err := f.program(ctx, path)
	if err != nil {
		return nil, record("references", err)
	}
	protoPos := position.FromProtocol(path, pos)
	target, err := prog.Lookup(position.ToInternal(protoPos))
	if err != nil {
		return nil, record("references", err)
	}
	name, err := words.WordAtPos(protoPos)
	if err != nil {
		return nil, record("references", err)
	}

	candidates, err := f.source.Candidates(ctx, name, path)
	if err != nil {
		if _, ok := errors.AsScanError(err); !ok {
			return nil, record("references", err)
		}
		skipped.merge(err)
	}

	var results []protocol.Location
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, record("references", err)
		}
		at := position.New(c.Path, int(c.Range.Start.Line), int(c.Range.Start.Character))
		d, err := prog.Lookup(position.ToInternal(at))
		if err != nil {
			if !errors.IsNotFound(err) {
				common.ResolveLogger.Debug("Dropping candidate %s: %v", at, err)
			}
			droppedCandidates.Inc()
			continue
		}
		if !d.Equal(target) {
			droppedCandidates.Inc()
			continue
		}
		results = append(results, c.ToProtocol())
	}
	lspconv.SortLocations(results)
	results = lspconv.DedupLocations(results)

	if err := skipped.Err(); err != nil {
		if f.opts.Strict {
			return nil, record("references", err)
		}
		record("references", err)
		return results, err
	}
	record("references", nil)
	return results, nil
}

func (f *Finder) program(ctx context.Context, path string) (*resolver.Program, *skipSet, error) {
	skipped := newSkipSet()
	prog, err := f.Program(ctx, path)
	if err != nil {
		if _, ok := errors.AsScanError(err); !ok {
			return nil, nil, err
		}
		skipped.merge(err)
	}
	// the query file itself must be readable
	if ioErr := skipped.get(path); ioErr != nil {
		return nil, nil, ioErr
	}
	return prog, skipped, nil
}

// skipSet merges skipped files from resolution and candidate scanning,
// reporting each path once.
type skipSet struct {
	seen      map[string]*errors.IOError
	collector errors.ScanCollector
}

func newSkipSet() *skipSet {
	return &skipSet{seen: make(map[string]*errors.IOError)}
}

func (s *skipSet) merge(err error) {
	scanErr, ok := errors.AsScanError(err)
	if !ok {
		s.collector.Add(err)
		return
	}
	for _, ioErr := range scanErr.Skipped() {
		key := filepath.Clean(ioErr.Path)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = ioErr
		s.collector.Add(ioErr)
	}
}

func (s *skipSet) get(path string) *errors.IOError {
	return s.seen[filepath.Clean(path)]
}

func (s *skipSet) Err() error {
	return s.collector.Err()
}

func observe(op string, start time.Time) {
	queryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func record(op string, err error) error {
	queryResults.WithLabelValues(op, errors.GetErrorCategory(err)).Inc()
	return err
}
