package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rishabhpatre/ai-news-agent/app/adapter"
	"github.com/rishabhpatre/ai-news-agent/app/collect"
	"github.com/rishabhpatre/ai-news-agent/app/dedup"
	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/normalize"
	"github.com/rishabhpatre/ai-news-agent/app/score"
	"github.com/rishabhpatre/ai-news-agent/app/selector"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

type Options struct {
	Registry *adapter.Registry
	Retry    collect.RetryPolicy
	Metrics  *metrics.Collector // optional
	Now      func() time.Time   // defaults to time.Now
}

// Pipeline wires fetching, normalization, deduplication, scoring and
// selection for a fixed set of sources.
type Pipeline struct {
	sources  []*source.Config
	fetchers map[string]adapter.Fetcher
	policy   *source.Policy
	retry    collect.RetryPolicy
	metrics  *metrics.Collector
	now      func() time.Time
}

// New validates the configuration and builds every adapter. Any error is a
// *source.ConfigError; nothing has been fetched at that point.
func New(sources []*source.Config, policy *source.Policy, opts Options) (*Pipeline, error) {
	if policy == nil {
		return nil, source.NewConfigError("", "policy", "no policy loaded")
	}
	if err := policy.CheckSources(sources); err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = adapter.NewDefaultRegistry(adapter.Deps{})
	}

	fetchers := make(map[string]adapter.Fetcher, len(sources))
	for _, src := range sources {
		if _, dup := fetchers[src.Name]; dup {
			return nil, source.NewConfigError(src.Name, "name", "duplicate source name")
		}
		f, err := registry.Build(src)
		if err != nil {
			if source.IsConfigError(err) {
				return nil, err
			}
			return nil, source.NewConfigError(src.Name, "", "%v", err)
		}
		fetchers[src.Name] = f
	}

	sorted := make([]*source.Config, len(sources))
	copy(sorted, sources)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		sources:  sorted,
		fetchers: fetchers,
		policy:   policy,
		retry:    opts.Retry,
		metrics:  opts.Metrics,
		now:      now,
	}, nil
}

func (p *Pipeline) Sources() []*source.Config {
	out := make([]*source.Config, len(p.sources))
	copy(out, p.sources)
	return out
}

// Run performs one complete pass. Source failures and dropped records are
// part of the digest; only a context cancelled before the run starts is
// returned as an error.
func (p *Pipeline) Run(ctx context.Context) (*Digest, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run not started: %w", err)
	}

	start := time.Now()
	now := p.now().UTC()
	digest := &Digest{ID: uuid.NewString(), GeneratedAt: now}

	slog.Info("Run started", "digest", digest.ID, "sources", len(p.sources))

	jobs, profiles := p.plan(now)

	collector := collect.NewCollector(p.retry)
	if p.metrics != nil {
		collector.OnOutcome(func(o collect.Outcome) {
			p.metrics.ObserveFetch(o.SourceID, o.Items, o.Err, o.Duration)
		})
	}
	raws, failures := collector.Collect(ctx, jobs)

	normalized, drops := normalize.NewNormalizer(profiles, p.policy.Normalize.MaxBodyRunes).Run(raws)

	minShared := source.DefaultMinSharedTokens
	if p.policy.Dedup.MinSharedTokens != nil {
		minShared = *p.policy.Dedup.MinSharedTokens
	}
	clusters := dedup.NewDeduplicator(p.policy.Dedup.Threshold, minShared).Run(normalized)

	scorer := score.NewScorer(score.ConfigFromPolicy(p.policy, p.sources), now)
	scored, floored := scorer.Run(dedup.Representatives(clusters))

	digest.Sections = selector.NewSelector(p.policy.TopNFor).Run(scored)
	digest.Failures = nonNil(failures)
	digest.Drops = nonNil(drops)
	digest.Stats = Stats{
		Sources:    len(p.sources),
		Failed:     len(failures),
		Fetched:    len(raws),
		Normalized: len(normalized),
		Dropped:    len(drops),
		Clusters:   len(clusters),
		Merged:     len(normalized) - len(clusters),
		Floored:    floored,
		Selected:   len(scored),
		Duration:   time.Since(start),
	}

	if p.metrics != nil {
		p.metrics.ObserveRun(digest.Stats.Duration, digest.Stats.Stages(), nil)
	}

	slog.Info("Run completed",
		"digest", digest.ID,
		"duration", digest.Stats.Duration,
		"sources", digest.Stats.Sources,
		"failed", digest.Stats.Failed,
		"fetched", digest.Stats.Fetched,
		"dropped", digest.Stats.Dropped,
		"merged", digest.Stats.Merged,
		"floored", digest.Stats.Floored,
		"selected", digest.Stats.Selected,
		"highlighted", digest.Highlighted())

	return digest, nil
}

// plan computes each source's window from its lookback tier.
func (p *Pipeline) plan(now time.Time) ([]collect.Job, map[string]normalize.Profile) {
	jobs := make([]collect.Job, 0, len(p.sources))
	profiles := make(map[string]normalize.Profile, len(p.sources))

	for _, src := range p.sources {
		window := item.NewWindow(now, p.policy.Tiers[src.Tier])
		jobs = append(jobs, collect.Job{
			Source:  src,
			Fetcher: p.fetchers[src.Name],
			Window:  window,
			Timeout: src.Timeout(),
		})
		profiles[src.Name] = normalize.ProfileFor(src, p.policy, window)
	}

	return jobs, profiles
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
