package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/adapter"
	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

const DefaultTimeout = 30 * time.Second

// Job is one source fetch: the adapter, the window it should cover and the
// time it is allowed to take including retries.
type Job struct {
	Source  *source.Config
	Fetcher adapter.Fetcher
	Window  item.Window
	Timeout time.Duration
}

// Outcome describes a finished job. Err is nil on success.
type Outcome struct {
	SourceID string
	Items    int
	Attempts int
	Duration time.Duration
	Err      error
}

type Collector struct {
	retry    RetryPolicy
	observer func(Outcome)
}

func NewCollector(retry RetryPolicy) *Collector {
	return &Collector{retry: retry}
}

// OnOutcome registers a callback invoked once per job from the consuming
// goroutine.
func (c *Collector) OnOutcome(fn func(Outcome)) {
	c.observer = fn
}

type jobResult struct {
	outcome Outcome
	items   []item.Raw
	reason  string
}

// Collect runs every job concurrently and waits at most for the longest job
// timeout. Items are returned grouped by source id in ascending order, each
// group in adapter order. Failures are sorted by source id.
func (c *Collector) Collect(ctx context.Context, jobs []Job) ([]item.Raw, []item.Failure) {
	// Buffered to len(jobs) so a job finishing after an early return of the
	// consumer never blocks.
	results := make(chan jobResult, len(jobs))

	for _, job := range jobs {
		go func(job Job) {
			results <- c.run(ctx, job)
		}(job)
	}

	bySource := make(map[string][]item.Raw, len(jobs))
	var failures []item.Failure

	for range jobs {
		r := <-results
		if c.observer != nil {
			c.observer(r.outcome)
		}

		if r.outcome.Err != nil {
			slog.Warn("Source fetch failed",
				"source", r.outcome.SourceID,
				"attempts", r.outcome.Attempts,
				"duration", r.outcome.Duration,
				"error", r.outcome.Err)
			failures = append(failures, item.Failure{SourceID: r.outcome.SourceID, Reason: r.reason})
			continue
		}

		slog.Debug("Source fetched",
			"source", r.outcome.SourceID,
			"items", r.outcome.Items,
			"attempts", r.outcome.Attempts,
			"duration", r.outcome.Duration)
		bySource[r.outcome.SourceID] = append(bySource[r.outcome.SourceID], r.items...)
	}

	ids := make([]string, 0, len(bySource))
	total := 0
	for id, items := range bySource {
		ids = append(ids, id)
		total += len(items)
	}
	sort.Strings(ids)

	items := make([]item.Raw, 0, total)
	for _, id := range ids {
		items = append(items, bySource[id]...)
	}

	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].SourceID < failures[j].SourceID
	})

	return items, failures
}

func (c *Collector) run(ctx context.Context, job Job) jobResult {
	start := time.Now()
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items, attempts, err := withRetry(jobCtx, c.retry, func(ctx context.Context) ([]item.Raw, error) {
		return fetchOnce(ctx, job)
	})

	r := jobResult{
		outcome: Outcome{
			SourceID: job.Source.Name,
			Items:    len(items),
			Attempts: attempts,
			Duration: time.Since(start),
			Err:      err,
		},
		items: items,
	}
	if err != nil {
		r.items = nil
		r.outcome.Items = 0
		r.reason = failureReason(ctx, jobCtx, timeout, err)
	}
	return r
}

// fetchOnce gives up at the context deadline even when the adapter ignores
// its context; the abandoned call finishes into a buffered channel.
func fetchOnce(ctx context.Context, job Job) (items []item.Raw, err error) {
	type fetched struct {
		items []item.Raw
		err   error
	}
	done := make(chan fetched, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetched{err: fmt.Errorf("adapter panicked: %v", p)}
			}
		}()
		items, err := job.Fetcher.Fetch(ctx, job.Window)
		done <- fetched{items: items, err: err}
	}()

	select {
	case f := <-done:
		return f.items, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func failureReason(parent, jobCtx context.Context, timeout time.Duration, err error) string {
	switch {
	case parent.Err() != nil:
		return fmt.Sprintf("cancelled: %v", parent.Err())
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("timed out after %s", timeout)
	default:
		return err.Error()
	}
}
