package source

import (
	"strings"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/item"
)

// Source configuration types

type Config struct {
	Name     string            // Derived from filename (without .yml extension)
	Kind     item.Kind         `yaml:"kind"`
	Category item.Category     `yaml:"category"`
	URL      string            `yaml:"url"`
	Tier     string            `yaml:"tier"`
	Settings ConfigSettings    `yaml:"settings"`
	Params   map[string]string `yaml:"params"`
}

type ConfigSettings struct {
	Enabled  bool     `yaml:"enabled"`
	Timeout  int      `yaml:"timeout"` // seconds
	MaxItems int      `yaml:"max_items"`
	Weight   *float64 `yaml:"weight"` // overrides the kind weight from the policy
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}

func (c *Config) Param(key, fallback string) string {
	if v, ok := c.Params[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// ParamList splits a comma separated param into trimmed, non-empty values.
func (c *Config) ParamList(key string) []string {
	raw := c.Param(key, "")
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// Policy configuration types

type Policy struct {
	Lexicon   map[string]float64       `yaml:"lexicon"`
	Tiers     map[string]time.Duration `yaml:"tiers"`
	Weights   map[item.Kind]float64    `yaml:"weights"`
	Dedup     DedupPolicy              `yaml:"dedup"`
	Score     ScorePolicy              `yaml:"score"`
	Select    SelectPolicy             `yaml:"select"`
	Normalize NormalizePolicy          `yaml:"normalize"`
}

type DedupPolicy struct {
	Threshold       float64 `yaml:"threshold"` // 0-100
	MinSharedTokens *int    `yaml:"min_shared_tokens"`
}

type ScorePolicy struct {
	DecayPerDay *float64 `yaml:"decay_per_day"`
	MaxPenalty  float64  `yaml:"max_penalty"` // 0 means uncapped
	Floor       *float64 `yaml:"floor"`
}

type SelectPolicy struct {
	TopN        int                   `yaml:"top_n"`
	PerCategory map[item.Category]int `yaml:"per_category"`
}

type NormalizePolicy struct {
	MaxBodyRunes int `yaml:"max_body_runes"`
}

// WeightFor resolves the tier weight of a source: its own override, else the
// weight of its kind.
func (p *Policy) WeightFor(c *Config) float64 {
	if c.Settings.Weight != nil {
		return *c.Settings.Weight
	}
	return p.Weights[c.Kind]
}

func (p *Policy) TopNFor(category item.Category) int {
	if n, ok := p.Select.PerCategory[category]; ok {
		return n
	}
	return p.Select.TopN
}
