// Package filepattern matches workspace paths against slash-separated globs.
package filepattern

import (
	"path"
	"path/filepath"
	"strings"

	"kcl-navigator/src/utils"
)

// Match reports whether a file path or file URI matches pattern. Supported patterns:
// - "" , "*" or "**/*": match all
// - standard glob wildcards (*, ?, [class]) within one path segment
// - "**" as a whole segment, matching any number of directories
// - directory prefix with trailing slash (e.g. "app/")
// - a pattern without a slash is tested against the basename only
// Paths under root are matched relative to it; anything else is matched as given.
func Match(root, pathOrURI, pattern string) bool {
	if pattern == "" || pattern == "*" || pattern == "**/*" {
		return true
	}
	rel := relative(root, utils.URIToFilePath(pathOrURI))
	pattern = strings.ReplaceAll(pattern, "\\", "/")

	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(rel+"/", pattern) || strings.HasPrefix(rel, pattern)
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

// Filter keeps the paths that match pattern
func Filter(root string, paths []string, pattern string) []string {
	var out []string
	for _, p := range paths {
		if Match(root, p, pattern) {
			out = append(out, p)
		}
	}
	return out
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], parts[0]); !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}

func relative(root, p string) string {
	p = filepath.Clean(p)
	if root != "" {
		if rel, err := filepath.Rel(filepath.Clean(root), p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			p = rel
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(p), "/")
}
