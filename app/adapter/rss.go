package adapter

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

// RSS reads any RSS, Atom or JSON feed: blogs, subreddit feeds, YouTube
// channel feeds, launch sites.
type RSS struct {
	src          *source.Config
	deps         Deps
	gofeedParser *gofeed.Parser
}

func NewRSS(src *source.Config, deps Deps) (Fetcher, error) {
	return &RSS{
		src:          src,
		deps:         deps,
		gofeedParser: gofeed.NewParser(),
	}, nil
}

func (a *RSS) Fetch(ctx context.Context, window item.Window) ([]item.Raw, error) {
	data, err := fetchBody(ctx, a.deps.HTTPClient, a.src.URL, a.deps.UserAgent, nil)
	if err != nil {
		return nil, err
	}
	return a.parse(data)
}

func (a *RSS) parse(data []byte) ([]item.Raw, error) {
	feed, err := a.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	venue := a.src.Param("label", strings.TrimSpace(feed.Title))

	items := make([]item.Raw, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		raw := a.normalizeItem(entry)
		raw.Venue = venue
		items = append(items, raw)
	}
	return items, nil
}

func (a *RSS) normalizeItem(entry *gofeed.Item) item.Raw {
	raw := item.Raw{
		SourceID:  a.src.Name,
		Kind:      item.KindRSS,
		Title:     entry.Title,
		Body:      cmp.Or(entry.Description, entry.Content),
		Link:      entry.Link,
		Author:    extractAuthor(entry),
		Thumbnail: extractThumbnail(entry),
	}

	if raw.Link == "" && strings.HasPrefix(entry.GUID, "http") {
		raw.Link = entry.GUID
	}

	if entry.PublishedParsed != nil {
		raw.Published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		raw.Published = *entry.UpdatedParsed
	}

	return raw
}

func extractAuthor(entry *gofeed.Item) string {
	var names []string
	for _, author := range entry.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			names = append(names, strings.TrimSpace(author.Name))
		}
	}
	if len(names) == 0 && entry.Author != nil {
		if name := strings.TrimSpace(entry.Author.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// extractThumbnail looks at the item image, image enclosures, and the Media
// RSS extension (including YouTube's media:group wrapper).
func extractThumbnail(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}

	for _, enclosure := range entry.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") && enclosure.URL != "" {
			return enclosure.URL
		}
	}

	media, ok := entry.Extensions["media"]
	if !ok {
		return ""
	}
	if url := mediaURL(media); url != "" {
		return url
	}
	for _, group := range media["group"] {
		if url := mediaURL(group.Children); url != "" {
			return url
		}
	}
	return ""
}

func mediaURL(elements map[string][]ext.Extension) string {
	for _, thumb := range elements["thumbnail"] {
		if url := thumb.Attrs["url"]; url != "" {
			return url
		}
	}
	for _, content := range elements["content"] {
		medium := content.Attrs["medium"]
		if url := content.Attrs["url"]; url != "" && (medium == "image" || strings.HasPrefix(content.Attrs["type"], "image/")) {
			return url
		}
	}
	return ""
}
