// Package pathutil normalizes untrusted path input into the canonical
// segment form used across the catalog and the content store.
package pathutil

import (
	"strings"
	"unicode"
)

// SanitizeSegment strips every character that is not a Unicode letter, a
// digit, an underscore or a hyphen. Characters are removed, not escaped, so
// no traversal segment ("..", ".", a leading "/") can survive. A segment made
// entirely of stripped characters comes back empty; callers skip empty
// segments.
func SanitizeSegment(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))

	for _, r := range segment {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// CanonicalPath normalizes a full virtual path: leading and trailing slashes
// are trimmed, each segment is sanitized, empty segments are dropped and the
// rest are rejoined with "/".
func CanonicalPath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}

	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))

	for _, part := range parts {
		if s := SanitizeSegment(part); s != "" {
			segments = append(segments, s)
		}
	}

	return strings.Join(segments, "/")
}

// SplitName splits a filename into its base and extension, without the dot.
// "report.final.pdf" yields ("report.final", "pdf"); a name without a dot
// has an empty extension.
func SplitName(name string) (base, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

// Join concatenates path pieces with "/", skipping empty pieces.
func Join(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, "/")
}
