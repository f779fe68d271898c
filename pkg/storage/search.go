package storage

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// likeEscaper escapes LIKE wildcards for an ESCAPE '!' clause. '!' is used
// because a backslash escape is not accepted by every engine.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// FoldText strips accents and lowers s. Punctuation is kept.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// PersonSearchText is the folded text a PersonFilter.Search is matched
// against. Names are separated by a newline so a match never spans two names.
func PersonSearchText(p *Person) string {
	return FoldText(p.FirstName) + "\n" + FoldText(p.LastName) + "\n" + FoldText(p.MaidenName)
}

// MatchesSearch reports whether search occurs in the search text of p.
func MatchesSearch(p *Person, search string) bool {
	return strings.Contains(PersonSearchText(p), FoldText(search))
}

// SearchPattern returns the LIKE pattern for search, to be used with
// ESCAPE '!' against a PersonSearchText column.
func SearchPattern(search string) string {
	return "%" + likeEscaper.Replace(FoldText(search)) + "%"
}
