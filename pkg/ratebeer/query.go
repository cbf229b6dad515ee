package ratebeer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery strips diacritics and collapses whitespace, since the beer
// search only matches unaccented names.
func NormalizeQuery(query string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, query)
	if err != nil {
		folded = query
	}
	return strings.Join(strings.Fields(folded), " ")
}
