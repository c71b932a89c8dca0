package score

import (
	"log/slog"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/lexicon"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

type Config struct {
	Lexicon     map[string]float64
	DecayPerDay float64
	MaxPenalty  float64 // 0 means uncapped
	// Floor drops items scoring at or below it. When nil, items without a
	// single lexicon match from the lowest-weighted tier are dropped instead.
	Floor        *float64
	LowestWeight float64
}

// ConfigFromPolicy builds the scorer configuration for a set of enabled
// sources.
func ConfigFromPolicy(policy *source.Policy, sources []*source.Config) Config {
	cfg := Config{
		Lexicon:      policy.Lexicon,
		MaxPenalty:   policy.Score.MaxPenalty,
		Floor:        policy.Score.Floor,
		LowestWeight: policy.LowestWeight(sources),
	}
	if policy.Score.DecayPerDay != nil {
		cfg.DecayPerDay = *policy.Score.DecayPerDay
	}
	return cfg
}

// Scorer is a pure function of an item, its configuration and the reference
// time ages are measured against.
type Scorer struct {
	cfg     Config
	matcher *lexicon.Matcher
	now     time.Time
}

func NewScorer(cfg Config, now time.Time) *Scorer {
	terms := make([]string, 0, len(cfg.Lexicon))
	for term := range cfg.Lexicon {
		terms = append(terms, term)
	}
	return &Scorer{cfg: cfg, matcher: lexicon.NewMatcher(terms), now: now}
}

// Score returns the item's score and the distinct lexicon terms it matched.
func (s *Scorer) Score(c item.Canonical) (float64, []string) {
	matches := s.matcher.Match(c.Title + " " + c.Body)

	total := c.TierWeight
	for _, term := range matches {
		total += s.cfg.Lexicon[term]
	}

	return total - s.Penalty(s.now.Sub(c.PublishedUTC)), matches
}

// Penalty grows linearly with age in days and never decreases.
func (s *Scorer) Penalty(age time.Duration) float64 {
	days := max(age.Hours()/24, 0)
	p := s.cfg.DecayPerDay * days
	if s.cfg.MaxPenalty > 0 {
		p = min(p, s.cfg.MaxPenalty)
	}
	return p
}

// Run scores every item and drops those under the floor. It returns the kept
// items, in input order, and the number dropped.
func (s *Scorer) Run(items []item.Canonical) ([]item.Canonical, int) {
	kept := make([]item.Canonical, 0, len(items))
	floored := 0

	for _, c := range items {
		score, matches := s.Score(c)
		c.Score = score

		if s.belowFloor(c, matches) {
			slog.Debug("Item below floor", "source", c.SourceID, "title", c.Title, "score", score)
			floored++
			continue
		}
		kept = append(kept, c)
	}

	return kept, floored
}

func (s *Scorer) belowFloor(c item.Canonical, matches []string) bool {
	if s.cfg.Floor != nil {
		return c.Score <= *s.cfg.Floor
	}
	return len(matches) == 0 && c.TierWeight <= s.cfg.LowestWeight
}
