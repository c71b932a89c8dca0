package adapter

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

const defaultNewsAPIURL = "https://newsapi.org/v2/everything"

// NewsAPI caps pageSize at 100.
const newsAPIMaxPageSize = 100

type NewsAPI struct {
	src      *source.Config
	deps     Deps
	endpoint string
	apiKey   string
	query    string
	language string
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func NewNewsAPI(src *source.Config, deps Deps) (Fetcher, error) {
	query := src.Param("query", "")
	if query == "" {
		return nil, source.NewConfigError(src.Name, "params.query", "is required for newsapi sources")
	}

	keyEnv := src.Param("api_key_env", "NEWSAPI_KEY")
	apiKey := deps.Getenv(keyEnv)
	if apiKey == "" {
		return nil, source.NewConfigError(src.Name, "params.api_key_env", "environment variable %s is not set", keyEnv)
	}

	return &NewsAPI{
		src:      src,
		deps:     deps,
		endpoint: cmp.Or(src.URL, defaultNewsAPIURL),
		apiKey:   apiKey,
		query:    query,
		language: src.Param("language", "en"),
	}, nil
}

func (a *NewsAPI) Fetch(ctx context.Context, window item.Window) ([]item.Raw, error) {
	header := http.Header{}
	header.Set("X-Api-Key", a.apiKey)

	data, err := fetchBody(ctx, a.deps.HTTPClient, a.requestURL(window), a.deps.UserAgent, header)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if msg := decodeNewsAPIError([]byte(statusErr.Snippet)); msg != "" {
				return nil, fmt.Errorf("newsapi %s: %s", statusErr.Status, msg)
			}
		}
		return nil, err
	}

	var resp newsAPIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode newsapi response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q: %s: %s", resp.Status, resp.Code, resp.Message)
	}

	items := make([]item.Raw, 0, len(resp.Articles))
	for _, article := range resp.Articles {
		raw := item.Raw{
			SourceID:  a.src.Name,
			Kind:      item.KindNewsAPI,
			Title:     article.Title,
			Body:      cmp.Or(article.Description, article.Content),
			Link:      article.URL,
			Thumbnail: article.URLToImage,
			Author:    article.Author,
			Venue:     article.Source.Name,
		}
		if published, err := time.Parse(time.RFC3339, article.PublishedAt); err == nil {
			raw.Published = published
		}
		items = append(items, raw)
	}
	return items, nil
}

func (a *NewsAPI) requestURL(window item.Window) string {
	params := url.Values{}
	params.Set("q", a.query)
	params.Set("from", window.Start.UTC().Format(time.RFC3339))
	params.Set("to", window.End.UTC().Format(time.RFC3339))
	params.Set("language", a.language)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(min(a.src.Settings.MaxItems, newsAPIMaxPageSize)))
	return a.endpoint + "?" + params.Encode()
}

func decodeNewsAPIError(body []byte) string {
	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", resp.Code, resp.Message)
}
