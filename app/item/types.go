package item

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryResearch     Category = "research"
	CategoryNews         Category = "news"
	CategoryVideo        Category = "video"
	CategoryCommunity    Category = "community"
	CategorySocial       Category = "social"
	CategoryTool         Category = "tool"
	CategoryModelRelease Category = "model-release"
)

var categories = []Category{
	CategoryResearch,
	CategoryNews,
	CategoryVideo,
	CategoryCommunity,
	CategorySocial,
	CategoryTool,
	CategoryModelRelease,
}

// Categories returns every category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Kind selects the adapter used to fetch a source.
type Kind string

const (
	KindRSS        Kind = "rss"
	KindArxiv      Kind = "arxiv"
	KindNewsAPI    Kind = "newsapi"
	KindHackerNews Kind = "hackernews"
	KindScrape     Kind = "scrape"
)

// Raw is a record as returned by an adapter, before normalization.
type Raw struct {
	SourceID  string    `json:"source"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Link      string    `json:"link"`
	Published time.Time `json:"-"` // may carry the source's own timezone
	Thumbnail string    `json:"thumbnail,omitempty"`
	Author    string    `json:"author,omitempty"`
	Venue     string    `json:"venue,omitempty"`
}

// Canonical is a normalized item. The deduplicator sets ClusterID and
// AlsoCoveredBy, the scorer sets Score.
type Canonical struct {
	Raw

	Category     Category  `json:"category"`
	PublishedUTC time.Time `json:"published"`
	MatchTitle   string    `json:"-"`
	TierWeight   float64   `json:"tier_weight"`

	Score         float64  `json:"score"`
	ClusterID     int      `json:"cluster_id"`
	AlsoCoveredBy []string `json:"also_covered_by,omitempty"`
}

// Failure records a source that returned nothing usable.
type Failure struct {
	SourceID string `json:"source"`
	Reason   string `json:"reason"`
}

// Drop records a single raw record rejected during normalization.
type Drop struct {
	SourceID string `json:"source"`
	Title    string `json:"title,omitempty"`
	Link     string `json:"link,omitempty"`
	Reason   string `json:"reason"`
}
