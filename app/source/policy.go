package source

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rishabhpatre/ai-news-agent/app/item"
)

const (
	DefaultThreshold       = 85.0
	DefaultMinSharedTokens = 4
	DefaultDecayPerDay     = 1.5
	DefaultTopN            = 5
	DefaultMaxBodyRunes    = 500
)

func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError(path, "", "failed to read file: %v", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, NewConfigError(path, "", "failed to parse YAML: %v", err)
	}

	policy.applyDefaults()

	if err := policy.validate(path); err != nil {
		return nil, err
	}

	return &policy, nil
}

func (p *Policy) applyDefaults() {
	if p.Dedup.Threshold == 0 {
		p.Dedup.Threshold = DefaultThreshold
	}
	if p.Dedup.MinSharedTokens == nil {
		n := DefaultMinSharedTokens
		p.Dedup.MinSharedTokens = &n
	}
	if p.Score.DecayPerDay == nil {
		d := DefaultDecayPerDay
		p.Score.DecayPerDay = &d
	}
	if p.Select.TopN == 0 {
		p.Select.TopN = DefaultTopN
	}
	if p.Normalize.MaxBodyRunes == 0 {
		p.Normalize.MaxBodyRunes = DefaultMaxBodyRunes
	}
	if p.Weights == nil {
		p.Weights = make(map[item.Kind]float64)
	}

	// Lexicon terms match case-insensitively, so keys are stored lowercased.
	lexicon := make(map[string]float64, len(p.Lexicon))
	for term, weight := range p.Lexicon {
		lexicon[strings.ToLower(strings.TrimSpace(term))] += weight
	}
	p.Lexicon = lexicon
}

func (p *Policy) validate(file string) error {
	if len(p.Lexicon) == 0 {
		return NewConfigError(file, "lexicon", "must contain at least one term")
	}
	for term, weight := range p.Lexicon {
		if term == "" {
			return NewConfigError(file, "lexicon", "contains an empty term")
		}
		if weight <= 0 {
			return NewConfigError(file, "lexicon", "term %q must have a positive weight", term)
		}
	}

	if len(p.Tiers) == 0 {
		return NewConfigError(file, "tiers", "must define at least one lookback tier")
	}
	for name, lookback := range p.Tiers {
		if lookback <= 0 {
			return NewConfigError(file, "tiers", "tier %q must have a positive lookback", name)
		}
	}

	if p.Dedup.Threshold < 0 || p.Dedup.Threshold > 100 {
		return NewConfigError(file, "dedup.threshold", "must be between 0 and 100")
	}

	nonNegativeFields := map[string]float64{
		"dedup.min_shared_tokens":  float64(*p.Dedup.MinSharedTokens),
		"score.decay_per_day":      *p.Score.DecayPerDay,
		"score.max_penalty":        p.Score.MaxPenalty,
		"select.top_n":             float64(p.Select.TopN),
		"normalize.max_body_runes": float64(p.Normalize.MaxBodyRunes),
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return NewConfigError(file, fieldName, "must be non-negative")
		}
	}

	for category, n := range p.Select.PerCategory {
		if _, err := item.ParseCategory(string(category)); err != nil {
			return NewConfigError(file, "select.per_category", "%v", err)
		}
		if n < 0 {
			return NewConfigError(file, "select.per_category", "%s must be non-negative", category)
		}
	}

	return nil
}

// CheckSources verifies the enabled sources against the policy. An empty
// source list is a configuration failure.
func (p *Policy) CheckSources(sources []*Config) error {
	if len(sources) == 0 {
		return NewConfigError("", "sources", "no enabled sources configured")
	}
	for _, s := range sources {
		if _, ok := p.Tiers[s.Tier]; !ok {
			return NewConfigError(s.Name, "tier", "unknown lookback tier %q", s.Tier)
		}
	}
	return nil
}

// LowestWeight is the smallest tier weight any of the given sources resolves to.
func (p *Policy) LowestWeight(sources []*Config) float64 {
	if len(sources) == 0 {
		return 0
	}
	lowest := p.WeightFor(sources[0])
	for _, s := range sources[1:] {
		lowest = min(lowest, p.WeightFor(s))
	}
	return lowest
}

func (p *Policy) String() string {
	return fmt.Sprintf("policy(terms=%d tiers=%d threshold=%.0f top_n=%d)",
		len(p.Lexicon), len(p.Tiers), p.Dedup.Threshold, p.Select.TopN)
}
