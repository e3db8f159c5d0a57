// Package taxonomy defines the category tree, its flat lookup index, and the
// slug normalization the whole pipeline shards by.
package taxonomy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Everything outside the slug alphabet (applied after lowercasing).
	invalidRunes = regexp.MustCompile(`[^a-z0-9\s-]+`)
	// Runs of whitespace.
	whitespaceRuns = regexp.MustCompile(`\s+`)
	// Runs of hyphens.
	hyphenRuns = regexp.MustCompile(`-+`)
)

// stripMarks decomposes accented characters and drops the combining marks,
// so "Ouă" becomes "Oua" and "Pâine" becomes "Paine".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts one path segment to its URL-safe slug.
// "Lactate & Ouă" -> "lactate-oua".
// "Curățenie & Menaj" -> "curatenie-menaj".
//
// Slugs are the sharding key: two display strings that normalize to the same
// slug land in the same shard. The function is deterministic and idempotent.
func Slugify(s string) string {
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)
	s = invalidRunes.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SlugifyPath slugifies every segment of a category path and joins them with
// "/". Segments that normalize to nothing are dropped.
// ["Lactate & Ouă", "Lapte"] -> "lactate-oua/lapte".
func SlugifyPath(path []string) string {
	segments := make([]string, 0, len(path))
	for _, p := range path {
		if s := Slugify(p); s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, "/")
}
