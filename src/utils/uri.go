package utils

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

const fileScheme = "file://"

// URIToFilePath converts a file:// URI to a file system path. Anything that is not
// a file URI is returned unchanged.
func URIToFilePath(u string) (path string) {
	if !strings.HasPrefix(u, fileScheme) {
		return u
	}
	// Filename panics on URIs it cannot parse.
	defer func() {
		if recover() != nil {
			path = strings.TrimPrefix(u, fileScheme)
		}
	}()
	return uri.URI(u).Filename()
}

// FilePathToURI converts a file system path to a file:// URI
func FilePathToURI(path string) string {
	return string(PathURI(path))
}

// PathURI is FilePathToURI returning the typed URI used by protocol structs
func PathURI(path string) uri.URI {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uri.File(filepath.Clean(path))
}

// NormalizePath makes path absolute and clean so it can be used as an index key
func NormalizePath(path string) string {
	path = URIToFilePath(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
