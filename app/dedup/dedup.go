package dedup

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rishabhpatre/ai-news-agent/app/item"
)

const DefaultThreshold = 85

// Cluster is one story. Members are in representative order, so
// Members[0] is the Representative.
type Cluster struct {
	ID             int              `json:"id"`
	Category       item.Category    `json:"category"`
	Representative item.Canonical   `json:"representative"`
	Members        []item.Canonical `json:"members"`
}

func (c Cluster) Merged() bool {
	return len(c.Members) > 1
}

type Deduplicator struct {
	threshold  float64
	similarity Similarity
}

// NewDeduplicator merges items whose match titles score at least threshold
// (0-100).
func NewDeduplicator(threshold float64, minSharedTokens int) *Deduplicator {
	return &Deduplicator{
		threshold:  threshold,
		similarity: Similarity{MinSharedTokens: minSharedTokens},
	}
}

// Run groups items into clusters within each category. The result does not
// depend on the order of items: components, representatives and cluster ids
// are all derived from item content.
func (d *Deduplicator) Run(items []item.Canonical) []Cluster {
	byCategory := make(map[item.Category][]item.Canonical)
	for _, it := range items {
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	var clusters []Cluster
	for _, cat := range orderedCategories(byCategory) {
		clusters = append(clusters, d.clusterCategory(cat, byCategory[cat])...)
	}
	return clusters
}

func (d *Deduplicator) clusterCategory(cat item.Category, items []item.Canonical) []Cluster {
	tokens := make([]tokenSet, len(items))
	for i := range items {
		tokens[i] = newTokenSet(items[i].MatchTitle)
	}

	uf := newUnionFind(len(items))
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if d.same(items, tokens, i, j) {
				uf.union(i, j)
			}
		}
	}

	groups := uf.groups()
	clusters := make([]Cluster, 0, len(groups))
	for _, indices := range groups {
		members := make([]item.Canonical, len(indices))
		for k, idx := range indices {
			members[k] = items[idx]
		}
		slices.SortFunc(members, compareRepresentative)
		clusters = append(clusters, Cluster{Category: cat, Members: members})
	}

	sort.Slice(clusters, func(i, j int) bool {
		return compareRepresentative(clusters[i].Members[0], clusters[j].Members[0]) < 0
	})

	for i := range clusters {
		id := i + 1
		clusters[i].ID = id
		for k := range clusters[i].Members {
			clusters[i].Members[k].ClusterID = id
		}

		rep := &clusters[i].Members[0]
		rep.AlsoCoveredBy = coveredBy(rep.SourceID, clusters[i].Members[1:])
		clusters[i].Representative = *rep
	}

	return clusters
}

func (d *Deduplicator) same(items []item.Canonical, tokens []tokenSet, i, j int) bool {
	if items[i].Link == items[j].Link {
		return true
	}
	return d.similarity.score(tokens[i], tokens[j]) >= d.threshold
}

// compareRepresentative orders the best representative first: longest body,
// then highest tier weight, earliest publication, smallest source id and
// smallest link.
func compareRepresentative(a, b item.Canonical) int {
	if la, lb := utf8.RuneCountInString(a.Body), utf8.RuneCountInString(b.Body); la != lb {
		if la > lb {
			return -1
		}
		return 1
	}
	if a.TierWeight != b.TierWeight {
		if a.TierWeight > b.TierWeight {
			return -1
		}
		return 1
	}
	if c := a.PublishedUTC.Compare(b.PublishedUTC); c != 0 {
		return c
	}
	if c := strings.Compare(a.SourceID, b.SourceID); c != 0 {
		return c
	}
	if c := strings.Compare(a.Link, b.Link); c != 0 {
		return c
	}
	return strings.Compare(a.Title, b.Title)
}

func coveredBy(own string, others []item.Canonical) []string {
	var ids []string
	for _, m := range others {
		if m.SourceID != own {
			ids = append(ids, m.SourceID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// orderedCategories lists the known categories first, in display order, then
// anything else alphabetically.
func orderedCategories(present map[item.Category][]item.Canonical) []item.Category {
	var out []item.Category
	known := make(map[item.Category]bool)
	for _, c := range item.Categories() {
		known[c] = true
		if _, ok := present[c]; ok {
			out = append(out, c)
		}
	}

	var extra []item.Category
	for c := range present {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Representatives returns the representative of each cluster, in cluster
// order.
func Representatives(clusters []Cluster) []item.Canonical {
	out := make([]item.Canonical, len(clusters))
	for i, c := range clusters {
		out[i] = c.Representative
	}
	return out
}
