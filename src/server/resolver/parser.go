package resolver

import (
	"path/filepath"
	"strings"

	"kcl-navigator/src/server/position"
	"kcl-navigator/src/server/words"
)

// Kind classifies a declaration
type Kind string

const (
	KindVariable  Kind = "variable"
	KindImport    Kind = "import"
	KindAttribute Kind = "attribute"
	KindSchema    Kind = "schema"
	KindMixin     Kind = "mixin"
	KindProtocol  Kind = "protocol"
	KindRule      Kind = "rule"
)

var schemaKeywords = map[string]Kind{
	"schema":   KindSchema,
	"mixin":    KindMixin,
	"protocol": KindProtocol,
	"rule":     KindRule,
}

var keywords = map[string]bool{
	"import": true, "as": true, "schema": true, "mixin": true, "protocol": true,
	"rule": true, "check": true, "for": true, "in": true, "if": true, "elif": true,
	"else": true, "lambda": true, "and": true, "or": true, "not": true, "is": true,
	"all": true, "any": true, "map": true, "filter": true, "assert": true,
	"type": true, "True": true, "False": true, "None": true, "Undefined": true,
	"str": true, "int": true, "float": true, "bool": true,
}

// IsKeyword reports whether word is reserved and therefore never resolves
func IsKeyword(word string) bool {
	return keywords[word]
}

// Declaration is the site that introduces a name. Start and End use resolver
// coordinates (1-based lines, rune columns).
type Declaration struct {
	Name  string            `json:"name"`
	Kind  Kind              `json:"kind"`
	Path  string            `json:"path"`
	Start position.Position `json:"start"`
	End   position.Position `json:"end"`
}

// Equal reports whether both declarations denote the same site
func (d *Declaration) Equal(other *Declaration) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Path == other.Path && d.Start == other.Start && d.End == other.End
}

// Import is one `import a.b.c [as x]` statement
type Import struct {
	Module string
	Alias  string
	Decl   *Declaration
}

// Ref points at the last word of an expression such as a base schema name.
// Line is a 0-based index into File.Lines.
type Ref struct {
	Line int
	Col  int
}

// Schema is a schema-like block and the attributes declared in its body
type Schema struct {
	Decl  *Declaration
	Bases []Ref
	Attrs *Scope
	// Body spans header+1..End as 0-based line indexes, inclusive.
	Header int
	End    int
}

func (s *Schema) contains(line int) bool {
	return line > s.Header && line <= s.End
}

// File is the parsed form of one source file
type File struct {
	Path string
	// Lines holds the source with string literals and comments blanked out,
	// so rune columns still line up with the original text.
	Lines   []string
	Imports []*Import
	Top     []*Declaration
	Schemas []*Schema

	sites       map[site]*Declaration
	importLines map[int]bool
}

type site struct {
	line int
	col  int
}

// DeclarationAt returns the declaration introduced at a 0-based line and rune column
func (f *File) DeclarationAt(line, col int) (*Declaration, bool) {
	d, ok := f.sites[site{line, col}]
	return d, ok
}

func (f *File) importByAlias(alias string) *Import {
	for _, imp := range f.Imports {
		if imp.Alias == alias {
			return imp
		}
	}
	return nil
}

func (f *File) schemaAt(line int) *Schema {
	for _, s := range f.Schemas {
		if s.contains(line) {
			return s
		}
	}
	return nil
}

// ParseFile builds the declaration structure of one file
func ParseFile(path string, src []byte) *File {
	f := &File{
		Path:        filepath.Clean(path),
		Lines:       maskLines(words.SplitLines(string(src))),
		sites:       make(map[site]*Declaration),
		importLines: make(map[int]bool),
	}

	seenTop := make(map[string]bool)
	depth := 0
	var current *Schema
	bodyIndent := -1

	for i, line := range f.Lines {
		lineDepth := depth
		depth += bracketDelta(line)
		if depth < 0 {
			depth = 0
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := indentOf(line)

		if current != nil {
			if indent > 0 || lineDepth > 0 {
				current.End = i
				if lineDepth == 0 && bodyIndent < 0 && !strings.HasPrefix(trimmed, "@") {
					bodyIndent = indent
				}
				if lineDepth == 0 && indent == bodyIndent {
					if d := f.attribute(i, line); d != nil {
						if current.Attrs.declare(d) {
							f.sites[site{i, d.Start.Column}] = d
						}
					}
				}
				continue
			}
			current = nil
		}

		if lineDepth > 0 || indent > 0 {
			continue
		}

		lineWords := words.LineToWords(line)
		if len(lineWords) == 0 || lineWords[0].Start != 0 {
			continue
		}
		first := lineWords[0].Word

		switch {
		case first == "import":
			f.importLines[i] = true
			if imp := f.parseImport(i, line, lineWords); imp != nil {
				f.Imports = append(f.Imports, imp)
				f.sites[site{i, imp.Decl.Start.Column}] = imp.Decl
			}
		case schemaKeywords[first] != "":
			s := f.parseSchema(i, line, lineWords, schemaKeywords[first])
			if s == nil {
				continue
			}
			f.Schemas = append(f.Schemas, s)
			current = s
			bodyIndent = -1
			if !seenTop[s.Decl.Name] {
				seenTop[s.Decl.Name] = true
				f.Top = append(f.Top, s.Decl)
			}
			f.sites[site{i, s.Decl.Start.Column}] = s.Decl
		default:
			if IsKeyword(first) || !assignsAfter(line, lineWords[0].End) {
				continue
			}
			if seenTop[first] {
				continue
			}
			seenTop[first] = true
			d := f.declaration(first, KindVariable, i, lineWords[0])
			f.Top = append(f.Top, d)
			f.sites[site{i, d.Start.Column}] = d
		}
	}
	return f
}

func (f *File) declaration(name string, kind Kind, line int, w words.LineWord) *Declaration {
	return &Declaration{
		Name:  name,
		Kind:  kind,
		Path:  f.Path,
		Start: position.New(f.Path, line+1, w.Start),
		End:   position.New(f.Path, line+1, w.End),
	}
}

func (f *File) parseImport(line int, text string, lineWords []words.LineWord) *Import {
	runes := []rune(text)
	// module path runs from after "import" up to " as " or end of line
	modStart := lineWords[0].End
	modEnd := len(runes)
	var aliasWord *words.LineWord
	for idx := 1; idx < len(lineWords); idx++ {
		if lineWords[idx].Word == "as" && idx+1 < len(lineWords) {
			modEnd = lineWords[idx].Start
			aliasWord = &lineWords[idx+1]
			break
		}
	}
	module := strings.TrimSpace(string(runes[modStart:modEnd]))
	if module == "" {
		return nil
	}
	if aliasWord == nil {
		var last *words.LineWord
		for idx := 1; idx < len(lineWords); idx++ {
			if lineWords[idx].End <= modEnd {
				last = &lineWords[idx]
			}
		}
		if last == nil {
			return nil
		}
		aliasWord = last
	}
	return &Import{
		Module: module,
		Alias:  aliasWord.Word,
		Decl:   f.declaration(aliasWord.Word, KindImport, line, *aliasWord),
	}
}

func (f *File) parseSchema(line int, text string, lineWords []words.LineWord, kind Kind) *Schema {
	if len(lineWords) < 2 || IsKeyword(lineWords[1].Word) {
		return nil
	}
	s := &Schema{
		Decl:   f.declaration(lineWords[1].Word, kind, line, lineWords[1]),
		Attrs:  newScope(ScopeSchema, lineWords[1].Word, f.Path, line+1),
		Header: line,
		End:    line,
	}
	s.Attrs.schema = s

	runes := []rune(text)
	open := -1
	for idx := lineWords[1].End; idx < len(runes); idx++ {
		if runes[idx] == '[' {
			// skip schema arguments
			for idx < len(runes) && runes[idx] != ']' {
				idx++
			}
			continue
		}
		if runes[idx] == '(' {
			open = idx
			break
		}
		if runes[idx] == ':' {
			break
		}
	}
	if open < 0 {
		return s
	}
	// each comma separated base contributes the last word of its dotted name
	closing := indexRune(runes, ')', open)
	var lastInGroup *words.LineWord
	for idx := 2; idx < len(lineWords); idx++ {
		w := lineWords[idx]
		if w.Start < open {
			continue
		}
		if closing >= 0 && w.Start > closing {
			break
		}
		if lastInGroup != nil && hasRuneBetween(runes, ',', lastInGroup.End, w.Start) {
			s.Bases = append(s.Bases, Ref{Line: line, Col: lastInGroup.Start})
		}
		lastInGroup = &lineWords[idx]
	}
	if lastInGroup != nil {
		s.Bases = append(s.Bases, Ref{Line: line, Col: lastInGroup.Start})
	}
	return s
}

// attribute parses `name: T`, `name?: T` and `name = v` lines of a schema body
func (f *File) attribute(line int, text string) *Declaration {
	lineWords := words.LineToWords(text)
	if len(lineWords) == 0 || lineWords[0].Start != indentOf(text) {
		return nil
	}
	w := lineWords[0]
	if IsKeyword(w.Word) {
		return nil
	}
	runes := []rune(text)
	idx := w.End
	if idx < len(runes) && runes[idx] == '?' {
		idx++
	}
	if !assignsAt(runes, idx) {
		return nil
	}
	return f.declaration(w.Word, KindAttribute, line, w)
}

func assignsAfter(text string, end int) bool {
	return assignsAt([]rune(text), end)
}

// assignsAt reports whether runes[idx:], after blanks, starts a type annotation
// or an assignment (but not a comparison).
func assignsAt(runes []rune, idx int) bool {
	for idx < len(runes) && (runes[idx] == ' ' || runes[idx] == '\t') {
		idx++
	}
	if idx >= len(runes) {
		return false
	}
	switch runes[idx] {
	case ':':
		return true
	case '=':
		return idx+1 >= len(runes) || runes[idx+1] != '='
	case '|', '+':
		return idx+1 < len(runes) && runes[idx+1] == '='
	}
	return false
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r != ' ' && r != '\t' {
			break
		}
		n++
	}
	return n
}

func bracketDelta(line string) int {
	delta := 0
	for _, r := range line {
		switch r {
		case '(', '[', '{':
			delta++
		case ')', ']', '}':
			delta--
		}
	}
	return delta
}

func indexRune(runes []rune, target rune, from int) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func hasRuneBetween(runes []rune, target rune, from, to int) bool {
	for i := from; i < to && i < len(runes); i++ {
		if runes[i] == target {
			return true
		}
	}
	return false
}

// maskLines blanks out comments and string literals, including triple-quoted
// strings spanning several lines. Every masked rune becomes a space.
func maskLines(lines []string) []string {
	out := make([]string, len(lines))
	var quote []rune // open triple quote carried across lines
	for i, line := range lines {
		runes := []rune(line)
		j := 0
		for j < len(runes) {
			if quote != nil {
				if hasPrefixAt(runes, j, quote) {
					for k := range quote {
						runes[j+k] = ' '
					}
					j += len(quote)
					quote = nil
					continue
				}
				if runes[j] == '\\' && j+1 < len(runes) {
					runes[j] = ' '
					j++
				}
				runes[j] = ' '
				j++
				continue
			}
			switch r := runes[j]; r {
			case '#':
				for k := j; k < len(runes); k++ {
					runes[k] = ' '
				}
				j = len(runes)
			case '"', '\'':
				triple := []rune{r, r, r}
				if hasPrefixAt(runes, j, triple) {
					for k := range triple {
						runes[j+k] = ' '
					}
					j += 3
					quote = triple
					continue
				}
				runes[j] = ' '
				j++
				for j < len(runes) && runes[j] != r {
					if runes[j] == '\\' && j+1 < len(runes) {
						runes[j] = ' '
						j++
					}
					runes[j] = ' '
					j++
				}
				if j < len(runes) {
					runes[j] = ' '
					j++
				}
			default:
				j++
			}
		}
		out[i] = string(runes)
	}
	return out
}

func hasPrefixAt(runes []rune, at int, prefix []rune) bool {
	if at+len(prefix) > len(runes) {
		return false
	}
	for k, r := range prefix {
		if runes[at+k] != r {
			return false
		}
	}
	return true
}
