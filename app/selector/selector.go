package selector

import (
	"sort"

	"github.com/rishabhpatre/ai-news-agent/app/item"
)

// Section is the selection for one category.
type Section struct {
	Category    item.Category    `json:"category"`
	Highlighted []item.Canonical `json:"highlighted"`
	Overflow    []item.Canonical `json:"overflow"`
}

// TopN returns the number of highlighted items for a category.
type TopN func(item.Category) int

type Selector struct {
	topN TopN
}

func NewSelector(topN TopN) *Selector {
	return &Selector{topN: topN}
}

// Run returns one section per category in display order. Empty categories
// get empty, non-nil slices.
func (s *Selector) Run(items []item.Canonical) []Section {
	byCategory := make(map[item.Category][]item.Canonical)
	for _, it := range items {
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	categories := item.Categories()
	sections := make([]Section, 0, len(categories))

	for _, cat := range categories {
		ranked := byCategory[cat]
		sort.SliceStable(ranked, func(i, j int) bool {
			return less(ranked[i], ranked[j])
		})

		n := min(max(s.topN(cat), 0), len(ranked))

		section := Section{
			Category:    cat,
			Highlighted: make([]item.Canonical, n),
			Overflow:    make([]item.Canonical, len(ranked)-n),
		}
		copy(section.Highlighted, ranked[:n])
		copy(section.Overflow, ranked[n:])

		sections = append(sections, section)
	}

	return sections
}

func less(a, b item.Canonical) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	return a.Link < b.Link
}
