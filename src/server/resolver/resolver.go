// Package resolver builds scopes for a set of KCL files and maps a position to
// the declaration the identifier under it refers to.
package resolver

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/server/position"
	"kcl-navigator/src/server/words"
)

// Resolver parses files (through an optional cache) into Programs
type Resolver struct {
	root  string
	cache *Cache
}

// New creates a resolver. Non-relative imports are looked up under root first.
// cache may be nil.
func New(root string, cache *Cache) *Resolver {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Resolver{root: root, cache: cache}
}

// Cache returns the parse cache, nil when caching is off
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve parses files and links their scopes. Files that cannot be read are
// skipped; the program is still returned together with a *errors.ScanError
// listing them.
func (r *Resolver) Resolve(ctx context.Context, files []string) (*Program, error) {
	start := time.Now()
	defer func() {
		resolveDuration.Observe(time.Since(start).Seconds())
	}()

	prog := newProgram(r.root)
	var skipped errors.ScanCollector
	for _, path := range uniqueSorted(files) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := r.load(path)
		if err != nil {
			resolvedFiles.WithLabelValues("skipped").Inc()
			common.ResolveLogger.Debug("Skipping %s: %v", path, err)
			skipped.Add(err)
			continue
		}
		resolvedFiles.WithLabelValues("parsed").Inc()
		prog.add(f)
	}
	prog.link()
	return prog, skipped.Err()
}

func (r *Resolver) load(path string) (*File, error) {
	if r.cache != nil {
		if f, ok := r.cache.Get(path); ok {
			return f, nil
		}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}
	f := ParseFile(path, src)
	if r.cache != nil {
		r.cache.Add(f)
	}
	return f, nil
}

func uniqueSorted(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = filepath.Clean(f)
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Program is a linked set of parsed files
type Program struct {
	root     string
	files    map[string]*File
	paths    []string
	packages map[string]*Scope
	modules  map[string]*Scope
	schemas  map[*Declaration]*Schema
	fallback []*Scope
}

func newProgram(root string) *Program {
	return &Program{
		root:     root,
		files:    make(map[string]*File),
		packages: make(map[string]*Scope),
		modules:  make(map[string]*Scope),
		schemas:  make(map[*Declaration]*Schema),
	}
}

func (p *Program) add(f *File) {
	p.files[f.Path] = f
	p.paths = append(p.paths, f.Path)
}

// link fills package and module scopes in path order so the first declaration
// of a name across a package wins deterministically.
func (p *Program) link() {
	for _, path := range p.paths {
		f := p.files[path]
		dir := filepath.Dir(path)
		pkg, ok := p.packages[dir]
		if !ok {
			pkg = newScope(ScopePackage, filepath.Base(dir), dir, 0)
			p.packages[dir] = pkg
			p.fallback = append(p.fallback, pkg)
		}
		mod := newScope(ScopeModule, filepath.Base(path), path, 0)
		p.modules[strings.TrimSuffix(path, filepath.Ext(path))] = mod
		for _, d := range f.Top {
			pkg.declare(d)
			mod.declare(d)
		}
		for _, s := range f.Schemas {
			p.schemas[s.Decl] = s
			p.fallback = append(p.fallback, s.Attrs)
		}
	}
	sort.SliceStable(p.fallback, func(i, j int) bool {
		return scopeLess(p.fallback[i], p.fallback[j])
	})
}

// Files returns the paths of every parsed file, sorted
func (p *Program) Files() []string {
	out := make([]string, len(p.paths))
	copy(out, p.paths)
	return out
}

// File returns the parsed file at path
func (p *Program) File(path string) (*File, bool) {
	f, ok := p.files[filepath.Clean(path)]
	return f, ok
}

// Package returns the scope of the package in dir
func (p *Program) Package(dir string) (*Scope, bool) {
	s, ok := p.packages[filepath.Clean(dir)]
	return s, ok
}

// Lookup returns the declaration the identifier at pos refers to. pos uses
// resolver coordinates (1-based line). A *errors.NotFoundError means there is
// no identifier there or nothing declares it; a *errors.ResolveError means pos
// lies outside the program.
func (p *Program) Lookup(pos position.Position) (*Declaration, error) {
	f, ok := p.files[filepath.Clean(pos.Filename)]
	if !ok {
		return nil, errors.NewResolveError(pos.Filename, errFileNotLoaded)
	}
	line := pos.Line - 1
	if line < 0 || line >= len(f.Lines) {
		return nil, errors.NewNotFoundError("", "line out of range")
	}
	if !pos.HasColumn {
		return nil, errors.NewNotFoundError("", "position has no column")
	}
	w, ok := words.WordAt(f.Lines[line], pos.Column)
	if !ok {
		return nil, errors.NewNotFoundError("", "position is not on an identifier")
	}
	if IsKeyword(w.Word) {
		return nil, errors.NewNotFoundError(w.Word, "keyword")
	}
	return p.resolveWord(f, line, w, make(map[*Schema]bool))
}

var errFileNotLoaded = stderrors.New("file is not part of the program")

func (p *Program) resolveWord(f *File, line int, w words.LineWord, visited map[*Schema]bool) (*Declaration, error) {
	if d, ok := f.DeclarationAt(line, w.Start); ok {
		return d, nil
	}
	if f.importLines[line] {
		return nil, errors.NewNotFoundError(w.Word, "module path segment")
	}

	if qualifier, dotted := qualifierOf(f.Lines[line], w.Start); dotted {
		if imp := f.importByAlias(qualifier); imp != nil {
			if scope := p.importScope(f, imp); scope != nil {
				if d, ok := scope.Get(w.Word); ok {
					return d, nil
				}
			}
			return nil, errors.NewNotFoundError(w.Word, "not declared in "+imp.Module)
		}
		// member of a value: any schema attribute of that name
		return p.searchFallback(w.Word, true)
	}

	if ref, ok := configKeyOf(f.Lines, line, w); ok {
		if d := p.configAttribute(f, ref, w.Word); d != nil {
			return d, nil
		}
	}
	if s := f.schemaAt(line); s != nil {
		if d := p.lookupSchema(f, s, w.Word, visited); d != nil {
			return d, nil
		}
	}
	if imp := f.importByAlias(w.Word); imp != nil {
		return imp.Decl, nil
	}
	if pkg, ok := p.packages[filepath.Dir(f.Path)]; ok {
		if d, ok := pkg.Get(w.Word); ok {
			return d, nil
		}
	}
	return p.searchFallback(w.Word, false)
}

// lookupSchema searches s, then its bases depth first. visited breaks
// inheritance cycles.
func (p *Program) lookupSchema(f *File, s *Schema, name string, visited map[*Schema]bool) *Declaration {
	if visited[s] {
		return nil
	}
	visited[s] = true
	if d, ok := s.Attrs.Get(name); ok {
		return d
	}
	for _, base := range s.Bases {
		w, ok := words.WordAt(f.Lines[base.Line], base.Col)
		if !ok {
			continue
		}
		d, err := p.resolveWord(f, base.Line, w, visited)
		if err != nil {
			continue
		}
		bs, ok := p.schemas[d]
		if !ok {
			continue
		}
		bf, ok := p.files[bs.Decl.Path]
		if !ok {
			continue
		}
		if found := p.lookupSchema(bf, bs, name, visited); found != nil {
			return found
		}
	}
	return nil
}

// configAttribute resolves name as an attribute of the schema named at ref
func (p *Program) configAttribute(f *File, ref Ref, name string) *Declaration {
	w, ok := words.WordAt(f.Lines[ref.Line], ref.Col)
	if !ok {
		return nil
	}
	d, err := p.resolveWord(f, ref.Line, w, make(map[*Schema]bool))
	if err != nil {
		return nil
	}
	s, ok := p.schemas[d]
	if !ok {
		return nil
	}
	sf, ok := p.files[s.Decl.Path]
	if !ok {
		return nil
	}
	return p.lookupSchema(sf, s, name, make(map[*Schema]bool))
}

// configKeyOf reports whether w is the key of an entry in a `Name { ... }`
// config block and returns a Ref to Name. The key must open its entry and be
// followed by an assignment; the innermost enclosing bracket must be that
// block's brace.
func configKeyOf(lines []string, line int, w words.LineWord) (Ref, bool) {
	runes := []rune(lines[line])
	i := w.Start - 1
	for i >= 0 && (runes[i] == ' ' || runes[i] == '\t') {
		i--
	}
	if i >= 0 && runes[i] != '{' && runes[i] != ',' {
		return Ref{}, false
	}
	if w.Start == 0 || !assignsAt(runes, w.End) {
		return Ref{}, false
	}

	depth := 0
	for l := line; l >= 0; l-- {
		lr := []rune(lines[l])
		col := len(lr) - 1
		if l == line {
			col = w.Start - 1
		}
		for ; col >= 0; col-- {
			switch lr[col] {
			case ')', ']', '}':
				depth++
			case '(', '[':
				if depth == 0 {
					return Ref{}, false
				}
				depth--
			case '{':
				if depth > 0 {
					depth--
					continue
				}
				j := col - 1
				for j >= 0 && (lr[j] == ' ' || lr[j] == '\t') {
					j--
				}
				if j < 0 || !words.IsIdentContinue(lr[j]) {
					return Ref{}, false
				}
				name, ok := words.WordAt(lines[l], j)
				if !ok {
					return Ref{}, false
				}
				return Ref{Line: l, Col: name.Start}, true
			}
		}
		// a balanced top-level line: nothing above can enclose the key
		if l < line && depth == 0 && indentOf(lines[l]) == 0 && strings.TrimSpace(lines[l]) != "" {
			return Ref{}, false
		}
	}
	return Ref{}, false
}

func (p *Program) searchFallback(name string, schemasOnly bool) (*Declaration, error) {
	for _, scope := range p.fallback {
		if schemasOnly && scope.Kind != ScopeSchema {
			continue
		}
		if d, ok := scope.Get(name); ok {
			return d, nil
		}
	}
	return nil, errors.NewNotFoundError(name, "no declaration")
}

// importScope maps an import to a package directory or a single module file.
// Leading dots are relative to the importing file; anything else is tried
// under the root and then next to the importing file.
func (p *Program) importScope(f *File, imp *Import) *Scope {
	module := imp.Module
	var bases []string
	if strings.HasPrefix(module, ".") {
		dots := len(module) - len(strings.TrimLeft(module, "."))
		base := filepath.Dir(f.Path)
		for i := 1; i < dots; i++ {
			base = filepath.Dir(base)
		}
		bases = []string{base}
		module = module[dots:]
	} else {
		if p.root != "" {
			bases = append(bases, p.root)
		}
		bases = append(bases, filepath.Dir(f.Path))
	}

	rel := filepath.FromSlash(strings.ReplaceAll(strings.TrimSpace(module), ".", "/"))
	for _, base := range bases {
		target := filepath.Join(base, rel)
		if scope, ok := p.packages[target]; ok {
			return scope
		}
		if scope, ok := p.modules[target]; ok {
			return scope
		}
	}
	return nil
}

// qualifierOf reports whether the word starting at start is preceded by a dot
// and returns the identifier before that dot, if any.
func qualifierOf(line string, start int) (string, bool) {
	runes := []rune(line)
	i := start - 1
	for i >= 0 && (runes[i] == ' ' || runes[i] == '\t') {
		i--
	}
	if i < 0 || runes[i] != '.' {
		return "", false
	}
	i--
	for i >= 0 && (runes[i] == ' ' || runes[i] == '\t') {
		i--
	}
	end := i + 1
	for i >= 0 && words.IsIdentContinue(runes[i]) {
		i--
	}
	return string(runes[i+1 : end]), true
}
