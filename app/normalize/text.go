package normalize

import (
	"html"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const ellipsis = "…"

const blockElements = "p, div, br, li, tr, td, h1, h2, h3, h4, h5, h6, blockquote, pre, figcaption"

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func CleanTitle(s string) string {
	return CollapseSpace(html.UnescapeString(s))
}

// StripHTML returns the visible text of an HTML fragment. Block elements are
// separated by a space so adjacent paragraphs do not run together.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CollapseSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseSpace(html.UnescapeString(s))
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find(blockElements).AfterHtml(" ")

	return CollapseSpace(doc.Text())
}

// Truncate cuts s to at most maxRunes runes, preferring the last word
// boundary, and marks the cut with an ellipsis. maxRunes <= 0 disables it.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	if maxRunes == 1 {
		return ellipsis
	}

	cut := r[:maxRunes-1]
	if i := lastSpace(cut); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + ellipsis
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

// MatchTitle folds a title for comparison only: compatibility decomposition,
// combining marks removed, case folded, punctuation turned into spaces.
func MatchTitle(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	folded := cases.Fold().String(decomposed)

	mapped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, folded)

	return CollapseSpace(mapped)
}
