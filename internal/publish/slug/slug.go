// Package slug derives canonical URL-safe identifiers for content items.
// Derivation never fails: it degrades to a fixed placeholder rather than
// erroring.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Placeholder is returned when neither the explicit slug nor the title
// normalizes to anything usable.
const Placeholder = "post-draft"

// Allocate returns the canonical slug for a draft: the explicit slug when it
// normalizes to something non-empty, else the normalized title, else the
// placeholder.
func Allocate(explicit, title string) string {
	if s := Normalize(explicit); s != "" {
		return s
	}
	if s := Normalize(title); s != "" {
		return s
	}
	return Placeholder
}

// Normalize lowercases the input, strips diacritics via NFKD decomposition,
// collapses every run of non-alphanumeric characters into a single hyphen,
// and trims leading and trailing hyphens. Idempotent: normalizing a
// normalized slug returns it unchanged.
func Normalize(v string) string {
	v = strings.ToLower(v)
	v = norm.NFKD.String(v)

	var b strings.Builder
	b.Grow(len(v))
	lastHyphen := true // swallow leading separators
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case unicode.Is(unicode.Mn, r):
			// Combining mark left over from decomposition: drop it.
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Valid reports whether v already satisfies the canonical slug grammar
// [a-z0-9-]+.
func Valid(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}
