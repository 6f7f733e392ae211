package lspconv

import (
	"fmt"

	"go.lsp.dev/protocol"
)

// FormatRange renders a range as line:col-line:col, 0-based
func FormatRange(r protocol.Range) string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
}

// RangeContains reports whether p lies inside the half-open range r
func RangeContains(r protocol.Range, p protocol.Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Character < r.Start.Character {
		return false
	}
	if p.Line == r.End.Line && p.Character >= r.End.Character {
		return false
	}
	return true
}
