package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes an upload's file name safe to place on disk. Path
// separators, colons, and asterisks become dashes so the shape of the name
// survives; quoting and glob characters are dropped outright.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*':
			b.WriteByte('-')
		case '?', '"', '<', '>', '|':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// SanitizeToken lowercases value into a slug usable in library directory
// names: ASCII letters and digits pass through, dashes and underscores are
// kept, and every other rune collapses to an underscore. Values with nothing
// usable come back as "unknown" so callers always get a non-empty segment.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r > unicode.MaxASCII:
			b.WriteByte('_')
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
