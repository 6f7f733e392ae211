package resolver

// ScopeKind tells package, module and schema scopes apart
type ScopeKind int

const (
	ScopePackage ScopeKind = iota
	ScopeModule
	ScopeSchema
)

func (k ScopeKind) String() string {
	switch k {
	case ScopePackage:
		return "package"
	case ScopeModule:
		return "module"
	case ScopeSchema:
		return "schema"
	}
	return "unknown"
}

// Scope maps names to the first declaration seen for each
type Scope struct {
	Kind ScopeKind
	Name string
	// Path is the package directory or the declaring file.
	Path string
	// Line is the 1-based header line for schema scopes and 0 otherwise.
	Line int

	decls  map[string]*Declaration
	names  []string
	schema *Schema
}

func newScope(kind ScopeKind, name, path string, line int) *Scope {
	return &Scope{
		Kind:  kind,
		Name:  name,
		Path:  path,
		Line:  line,
		decls: make(map[string]*Declaration),
	}
}

// declare adds d unless the name is already taken and reports whether it was added
func (s *Scope) declare(d *Declaration) bool {
	if _, exists := s.decls[d.Name]; exists {
		return false
	}
	s.decls[d.Name] = d
	s.names = append(s.names, d.Name)
	return true
}

// Get returns the declaration of name in this scope only
func (s *Scope) Get(name string) (*Declaration, bool) {
	d, ok := s.decls[name]
	return d, ok
}

// Names returns declared names in declaration order
func (s *Scope) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of declarations
func (s *Scope) Len() int {
	return len(s.names)
}

func scopeLess(a, b *Scope) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Kind < b.Kind
}
