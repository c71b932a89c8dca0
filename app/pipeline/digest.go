package pipeline

import (
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/selector"
)

// Digest is the outcome of one run.
type Digest struct {
	ID          string             `json:"id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Sections    []selector.Section `json:"sections"`
	Failures    []item.Failure     `json:"failures"`
	Drops       []item.Drop        `json:"drops"`
	Stats       Stats              `json:"stats"`
}

type Stats struct {
	Sources    int           `json:"sources"`
	Failed     int           `json:"failed"`
	Fetched    int           `json:"fetched"`
	Normalized int           `json:"normalized"`
	Dropped    int           `json:"dropped"`
	Clusters   int           `json:"clusters"`
	Merged     int           `json:"merged"`
	Floored    int           `json:"floored"`
	Selected   int           `json:"selected"`
	Duration   time.Duration `json:"duration_ns"`
}

// Stages returns the per-stage item counts keyed by stage name.
func (s Stats) Stages() map[string]int {
	return map[string]int{
		"fetched":    s.Fetched,
		"normalized": s.Normalized,
		"dropped":    s.Dropped,
		"clusters":   s.Clusters,
		"merged":     s.Merged,
		"floored":    s.Floored,
		"selected":   s.Selected,
	}
}

func (d *Digest) Section(category item.Category) (selector.Section, bool) {
	for _, s := range d.Sections {
		if s.Category == category {
			return s, true
		}
	}
	return selector.Section{}, false
}

// Highlighted counts the highlighted items over all sections.
func (d *Digest) Highlighted() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Highlighted)
	}
	return n
}
