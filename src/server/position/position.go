// Package position converts between the two line conventions in play: protocol
// positions are 0-based, resolver positions use 1-based lines. Columns are never
// adjusted.
package position

import (
	"fmt"

	"go.lsp.dev/protocol"
)

// Position is a point in a file. Which line convention it uses depends on which
// side of the boundary it lives on.
type Position struct {
	Filename  string
	Line      int
	Column    int
	HasColumn bool
}

// New returns a position with a column set
func New(filename string, line, column int) Position {
	return Position{Filename: filename, Line: line, Column: column, HasColumn: true}
}

// ToInternal converts a protocol position (0-based line) to resolver coordinates.
func ToInternal(p Position) Position {
	p.Line++
	return p
}

// ToProtocol converts a resolver position (1-based line) to protocol coordinates.
func ToProtocol(p Position) Position {
	p.Line--
	return p
}

// FromProtocol builds a protocol-side Position from an LSP position.
func FromProtocol(filename string, pos protocol.Position) Position {
	return New(filename, int(pos.Line), int(pos.Character))
}

// ProtocolPosition converts a protocol-side Position to an LSP position. A missing
// column maps to character 0; negative values are clamped.
func ProtocolPosition(p Position) protocol.Position {
	col := 0
	if p.HasColumn {
		col = p.Column
	}
	return protocol.Position{Line: clamp(p.Line), Character: clamp(col)}
}

// ColumnOr returns the column, or def when none is set
func (p Position) ColumnOr(def int) int {
	if !p.HasColumn {
		return def
	}
	return p.Column
}

func (p Position) String() string {
	if p.HasColumn {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

func clamp(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
