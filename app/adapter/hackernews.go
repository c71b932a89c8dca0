package adapter

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/lexicon"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

const (
	defaultHackerNewsURL   = "https://hacker-news.firebaseio.com/v0"
	hackerNewsItemPage     = "https://news.ycombinator.com/item?id="
	defaultHNConcurrency   = 8
	hnConsecutiveFailLimit = 5
)

var hackerNewsLists = map[string]bool{"top": true, "new": true, "best": true}

// HackerNews reads a story list from the Firebase API and fetches each story
// with bounded concurrency.
type HackerNews struct {
	src         *source.Config
	deps        Deps
	baseURL     string
	list        string
	minScore    int
	concurrency int
	keywords    *lexicon.Matcher
}

type hnItem struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Text    string `json:"text"`
	Score   int    `json:"score"`
	Dead    bool   `json:"dead"`
	Deleted bool   `json:"deleted"`
}

func NewHackerNews(src *source.Config, deps Deps) (Fetcher, error) {
	list := src.Param("list", "top")
	if !hackerNewsLists[list] {
		return nil, source.NewConfigError(src.Name, "params.list", "must be one of top, new, best")
	}

	minScore, err := strconv.Atoi(src.Param("min_score", "0"))
	if err != nil {
		return nil, source.NewConfigError(src.Name, "params.min_score", "must be an integer")
	}

	concurrency, err := strconv.Atoi(src.Param("concurrency", strconv.Itoa(defaultHNConcurrency)))
	if err != nil || concurrency <= 0 {
		return nil, source.NewConfigError(src.Name, "params.concurrency", "must be a positive integer")
	}

	a := &HackerNews{
		src:         src,
		deps:        deps,
		baseURL:     strings.TrimSuffix(cmp.Or(src.URL, defaultHackerNewsURL), "/"),
		list:        list,
		minScore:    minScore,
		concurrency: concurrency,
	}
	if keywords := src.ParamList("keywords"); len(keywords) > 0 {
		a.keywords = lexicon.NewMatcher(keywords)
	}
	return a, nil
}

func (a *HackerNews) Fetch(ctx context.Context, window item.Window) ([]item.Raw, error) {
	ids, err := a.fetchIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > a.src.Settings.MaxItems {
		ids = ids[:a.src.Settings.MaxItems]
	}

	// Scoped to this call: once the API keeps failing, the remaining
	// requests are rejected without touching the network.
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    a.src.Name,
		Timeout: window.Duration() + time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= hnConsecutiveFailLimit
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "source", name, "from", from.String(), "to", to.String())
		},
	})

	type result struct {
		story *hnItem
		err   error
	}

	results := make(chan result, len(ids))
	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{err: ctx.Err()}
				return
			}

			story, err := breaker.Execute(func() (interface{}, error) {
				return a.fetchItem(ctx, id)
			})
			if err != nil {
				results <- result{err: err}
				return
			}
			results <- result{story: story.(*hnItem)}
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		items    []item.Raw
		failures int
		lastErr  error
	)
	for r := range results {
		if r.err != nil {
			failures++
			lastErr = r.err
			continue
		}
		if raw, ok := a.toRaw(r.story); ok {
			items = append(items, raw)
		}
	}

	if failures > 0 {
		if failures == len(ids) {
			return nil, fmt.Errorf("all %d item requests failed: %w", failures, lastErr)
		}
		slog.Warn("Some Hacker News items could not be fetched", "source", a.src.Name, "failed", failures, "requested", len(ids), "error", lastErr)
	}

	return items, nil
}

func (a *HackerNews) fetchIDs(ctx context.Context) ([]int64, error) {
	data, err := fetchBody(ctx, a.deps.HTTPClient, fmt.Sprintf("%s/%sstories.json", a.baseURL, a.list), a.deps.UserAgent, nil)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode story list: %w", err)
	}
	return ids, nil
}

func (a *HackerNews) fetchItem(ctx context.Context, id int64) (*hnItem, error) {
	data, err := fetchBody(ctx, a.deps.HTTPClient, fmt.Sprintf("%s/item/%d.json", a.baseURL, id), a.deps.UserAgent, nil)
	if err != nil {
		return nil, err
	}

	var story hnItem
	if err := json.Unmarshal(data, &story); err != nil {
		return nil, fmt.Errorf("failed to decode item %d: %w", id, err)
	}
	if story.ID == 0 {
		return nil, errors.New("item " + strconv.FormatInt(id, 10) + " not found")
	}
	return &story, nil
}

func (a *HackerNews) toRaw(story *hnItem) (item.Raw, bool) {
	if story.Type != "story" || story.Dead || story.Deleted || story.Score < a.minScore {
		return item.Raw{}, false
	}
	if a.keywords != nil && !a.keywords.Any(story.Title+" "+story.Text) {
		return item.Raw{}, false
	}

	return item.Raw{
		SourceID:  a.src.Name,
		Kind:      item.KindHackerNews,
		Title:     story.Title,
		Body:      story.Text,
		Link:      cmp.Or(story.URL, hackerNewsItemPage+strconv.FormatInt(story.ID, 10)),
		Published: time.Unix(story.Time, 0).UTC(),
		Author:    story.By,
		Venue:     fmt.Sprintf("Hacker News (%d points)", story.Score),
	}, true
}
