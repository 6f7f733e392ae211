package lspconv

import (
	"sort"

	"go.lsp.dev/protocol"

	"kcl-navigator/src/server/position"
	"kcl-navigator/src/utils"
)

// ToLocation builds a protocol location from resolver-side start and end
// positions (1-based lines).
func ToLocation(path string, start, end position.Position) protocol.Location {
	return protocol.Location{
		URI: utils.PathURI(path),
		Range: protocol.Range{
			Start: position.ProtocolPosition(position.ToProtocol(start)),
			End:   position.ProtocolPosition(position.ToProtocol(end)),
		},
	}
}

// LocationPath returns the file system path of a location
func LocationPath(loc protocol.Location) string {
	return utils.URIToFilePath(string(loc.URI))
}

// SortLocations orders locations by file, then line, then character
func SortLocations(locs []protocol.Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		return LessLocation(locs[i], locs[j])
	})
}

// LessLocation reports whether a sorts before b
func LessLocation(a, b protocol.Location) bool {
	if a.URI != b.URI {
		return LocationPath(a) < LocationPath(b)
	}
	if a.Range.Start.Line != b.Range.Start.Line {
		return a.Range.Start.Line < b.Range.Start.Line
	}
	return a.Range.Start.Character < b.Range.Start.Character
}

// DedupLocations removes repeated locations from a sorted slice in place
func DedupLocations(locs []protocol.Location) []protocol.Location {
	if len(locs) < 2 {
		return locs
	}
	out := locs[:1]
	for _, loc := range locs[1:] {
		if loc != out[len(out)-1] {
			out = append(out, loc)
		}
	}
	return out
}
