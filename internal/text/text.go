// Package text provides the string normalization helpers used throughout
// Strata: slug generation, safe identifier keys, and human-friendly labels.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/slug"
)

var (
	wordSplitPattern = regexp.MustCompile(`[_\-\s]+`)
	unsafeKeyPattern = regexp.MustCompile(`[^a-z0-9_-]+`)
	nonAlnumPattern  = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// Slugify converts an arbitrary string into a URL-safe, lowercase slug.
func Slugify(s string) string {
	return slug.Make(s)
}

// SafeKey canonicalizes a field key: lowercase, dashes folded to
// underscores, and anything outside [a-z0-9_] removed.
func SafeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeKeyPattern.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "-", "_")
}

// Humanize derives a display name from a slug: non-alphanumeric runs become
// spaces and each word is title-cased. "blog-posts" becomes "Blog Posts".
func Humanize(s string) string {
	s = nonAlnumPattern.ReplaceAllString(s, " ")
	return TitleCase(s)
}

// TitleCase upper-cases the first letter of every word, splitting on
// underscores, dashes, and whitespace.
func TitleCase(s string) string {
	words := wordSplitPattern.Split(s, -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		out = append(out, string(unicode.ToUpper(r))+w[size:])
	}
	return strings.Join(out, " ")
}

// IsNumeric reports whether s consists solely of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
