package dedup

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "by": {}, "at": {}, "from": {},
	"is": {}, "are": {}, "as": {}, "its": {}, "it": {}, "this": {}, "that": {},
	"be": {}, "via": {}, "vs": {}, "how": {}, "what": {}, "why": {},
}

// Headline verbs and nouns shared by unrelated AI stories. They never count
// towards the shared-token rule.
var commonTerms = map[string]struct{}{
	"ai": {}, "model": {}, "models": {}, "release": {}, "releases": {},
	"released": {}, "launch": {}, "launches": {}, "launched": {},
	"announce": {}, "announces": {}, "announced": {}, "introduces": {},
	"introducing": {}, "unveils": {}, "update": {}, "updates": {},
	"says": {}, "now": {}, "today": {},
}

// tokenSet is the sorted distinct tokens of a match title.
type tokenSet []string

func newTokenSet(matchTitle string) tokenSet {
	fields := strings.Fields(matchTitle)
	slices.Sort(fields)
	return slices.Compact(fields)
}

// split returns the intersection and the two remainders; all stay sorted.
func (a tokenSet) split(b tokenSet) (common, onlyA, onlyB []string) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			common = append(common, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)
	return common, onlyA, onlyB
}

// Similarity scores two match titles on a 0-100 scale.
type Similarity struct {
	// MinSharedTokens is the number of shared significant tokens that makes
	// two titles count as identical, provided they also cover most of the
	// shorter title. Zero disables the rule.
	MinSharedTokens int
}

func (s Similarity) Score(a, b string) float64 {
	return s.score(newTokenSet(a), newTokenSet(b))
}

// A title whose tokens are a subset of another's is still compared against
// the whole longer title.
func (s Similarity) score(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	common, onlyA, onlyB := a.split(b)

	if s.MinSharedTokens > 0 {
		shared := significant(common)
		shorter := min(significant(a), significant(b))
		if shared >= s.MinSharedTokens && 2*shared > shorter {
			return 100
		}
	}

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	return ratio(withA, withB)
}

func significant(tokens []string) int {
	n := 0
	for _, t := range tokens {
		if _, stop := stopwords[t]; stop {
			continue
		}
		if _, generic := commonTerms[t]; generic {
			continue
		}
		n++
	}
	return n
}

// ratio is the normalized Levenshtein similarity: 100 * (1 - distance/longest).
func ratio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}
