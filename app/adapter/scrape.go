package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

// Scrape reads a listing page without a feed (trending repositories, model
// hubs) using CSS selectors from the source params.
//
// Listing pages carry no dates, so every item is stamped with the window end.
type Scrape struct {
	src          *source.Config
	deps         Deps
	itemSelector string
	titleSel     string
	linkSel      string
	bodySel      string
}

func NewScrape(src *source.Config, deps Deps) (Fetcher, error) {
	a := &Scrape{
		src:          src,
		deps:         deps,
		itemSelector: src.Param("item", ""),
		titleSel:     src.Param("title", ""),
		bodySel:      src.Param("body", ""),
	}
	a.linkSel = src.Param("link", a.titleSel)

	if a.itemSelector == "" || a.titleSel == "" {
		return nil, source.NewConfigError(src.Name, "params", "scrape sources need item and title selectors")
	}
	return a, nil
}

func (a *Scrape) Fetch(ctx context.Context, window item.Window) ([]item.Raw, error) {
	c := colly.NewCollector(
		colly.UserAgent(a.deps.UserAgent),
		colly.MaxDepth(1),
	)
	c.SetClient(contextClient(ctx, a.deps.HTTPClient))

	var items []item.Raw

	c.OnHTML(a.itemSelector, func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText(a.titleSel))
		if title == "" {
			return
		}

		href := e.ChildAttr(a.linkSel, "href")
		if href == "" && e.Name == "a" {
			href = e.Attr("href")
		}

		raw := item.Raw{
			SourceID:  a.src.Name,
			Kind:      item.KindScrape,
			Title:     title,
			Link:      e.Request.AbsoluteURL(strings.TrimSpace(href)),
			Published: window.End,
			Venue:     a.src.Param("label", e.Request.URL.Host),
		}
		if a.bodySel != "" {
			raw.Body = strings.TrimSpace(e.ChildText(a.bodySel))
		}
		items = append(items, raw)
	})

	if err := c.Visit(a.src.URL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to scrape %s: %w", a.src.URL, ctxErr)
		}
		return nil, fmt.Errorf("failed to scrape %s: %w", a.src.URL, err)
	}
	c.Wait()

	return items, nil
}

// contextClient copies client so that every request it sends carries ctx.
// colly builds its requests without a context.
func contextClient(ctx context.Context, client *http.Client) *http.Client {
	var c http.Client
	if client != nil {
		c = *client
	}
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.Transport = &contextTransport{ctx: ctx, base: base}
	return &c
}

type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
