package adapter

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

const defaultArxivURL = "https://export.arxiv.org/api/query"

const arxivDateLayout = "200601021504"

// Arxiv queries the arXiv export API, which answers in Atom.
type Arxiv struct {
	src          *source.Config
	deps         Deps
	endpoint     string
	categories   []string
	keywords     []string
	gofeedParser *gofeed.Parser
}

func NewArxiv(src *source.Config, deps Deps) (Fetcher, error) {
	a := &Arxiv{
		src:          src,
		deps:         deps,
		endpoint:     cmp.Or(src.URL, defaultArxivURL),
		categories:   src.ParamList("categories"),
		keywords:     src.ParamList("keywords"),
		gofeedParser: gofeed.NewParser(),
	}
	if len(a.categories) == 0 && len(a.keywords) == 0 {
		return nil, source.NewConfigError(src.Name, "params", "arxiv sources need categories or keywords")
	}
	return a, nil
}

func (a *Arxiv) Fetch(ctx context.Context, window item.Window) ([]item.Raw, error) {
	data, err := fetchBody(ctx, a.deps.HTTPClient, a.queryURL(window), a.deps.UserAgent, nil)
	if err != nil {
		return nil, err
	}

	feed, err := a.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arxiv response: %w", err)
	}

	items := make([]item.Raw, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		raw := item.Raw{
			SourceID: a.src.Name,
			Kind:     item.KindArxiv,
			Title:    entry.Title,
			Body:     cmp.Or(entry.Description, entry.Content),
			Link:     entry.Link,
			Author:   arxivAuthors(entry),
			Venue:    primaryCategory(entry),
		}
		if entry.PublishedParsed != nil {
			raw.Published = *entry.PublishedParsed
		}
		items = append(items, raw)
	}
	return items, nil
}

// queryURL builds a query of the form
// (cat:cs.AI OR cat:cs.CL) AND (all:"agent" OR all:"llm") AND submittedDate:[from TO to].
func (a *Arxiv) queryURL(window item.Window) string {
	var clauses []string

	if len(a.categories) > 0 {
		parts := make([]string, len(a.categories))
		for i, c := range a.categories {
			parts[i] = "cat:" + c
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}

	if len(a.keywords) > 0 {
		parts := make([]string, len(a.keywords))
		for i, k := range a.keywords {
			parts[i] = fmt.Sprintf("all:%q", k)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}

	clauses = append(clauses, fmt.Sprintf("submittedDate:[%s TO %s]",
		window.Start.UTC().Format(arxivDateLayout), window.End.UTC().Format(arxivDateLayout)))

	params := url.Values{}
	params.Set("search_query", strings.Join(clauses, " AND "))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(a.src.Settings.MaxItems))

	return a.endpoint + "?" + params.Encode()
}

func arxivAuthors(entry *gofeed.Item) string {
	const shown = 3

	var names []string
	for _, author := range entry.Authors {
		if author != nil && author.Name != "" {
			names = append(names, strings.TrimSpace(author.Name))
		}
	}
	if len(names) > shown {
		return strings.Join(names[:shown], ", ") + " et al."
	}
	return strings.Join(names, ", ")
}

func primaryCategory(entry *gofeed.Item) string {
	for _, primary := range entry.Extensions["arxiv"]["primary_category"] {
		if term := primary.Attrs["term"]; term != "" {
			return term
		}
	}
	if len(entry.Categories) > 0 {
		return entry.Categories[0]
	}
	return ""
}
