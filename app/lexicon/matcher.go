package lexicon

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Matcher finds lexicon terms in free text, case-insensitively. Phrases and
// terms longer than three runes match as substrings, shorter terms only as
// whole words (plural "s" allowed) so that "ai" does not fire inside "said"
// while "llm" still matches "LLMs".
type Matcher struct {
	terms []term
}

type term struct {
	text string
	re   *regexp.Regexp
}

func NewMatcher(terms []string) *Matcher {
	seen := make(map[string]bool, len(terms))
	m := &Matcher{terms: make([]term, 0, len(terms))}

	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true

		compiled := term{text: t}
		if !strings.Contains(t, " ") && utf8.RuneCountInString(t) <= 3 {
			compiled.re = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `s?\b`)
		}
		m.terms = append(m.terms, compiled)
	}

	sort.Slice(m.terms, func(i, j int) bool { return m.terms[i].text < m.terms[j].text })
	return m
}

// Match returns the distinct terms present in text, sorted.
func (m *Matcher) Match(text string) []string {
	text = strings.ToLower(text)

	var found []string
	for _, t := range m.terms {
		if t.re != nil {
			if t.re.MatchString(text) {
				found = append(found, t.text)
			}
			continue
		}
		if strings.Contains(text, t.text) {
			found = append(found, t.text)
		}
	}
	return found
}

func (m *Matcher) Any(text string) bool {
	return len(m.Match(text)) > 0
}

func (m *Matcher) Len() int {
	return len(m.terms)
}
