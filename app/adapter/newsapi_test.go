package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

const testNewsAPIResponse = `{
  "status": "ok",
  "totalResults": 2,
  "articles": [
    {
      "source": {"id": "techcrunch", "name": "TechCrunch"},
      "author": "Jane Doe",
      "title": "Startup ships open LLM",
      "description": "A new open model.",
      "url": "https://techcrunch.com/2023/07/04/open-llm/?utm_source=feed",
      "urlToImage": "https://techcrunch.com/img.jpg",
      "publishedAt": "2023-07-04T09:30:00Z",
      "content": "Full text"
    },
    {
      "source": {"id": null, "name": "Blog"},
      "author": null,
      "title": "No date here",
      "description": null,
      "url": "https://blog.example.com/x",
      "urlToImage": null,
      "publishedAt": "not a date",
      "content": "Only content"
    }
  ]
}`

func newsAPISource(url string) *source.Config {
	return &source.Config{
		Name:     "newsapi-ai",
		Kind:     item.KindNewsAPI,
		URL:      url,
		Settings: source.ConfigSettings{MaxItems: 500},
		Params:   map[string]string{"query": "artificial intelligence", "api_key_env": "TEST_NEWSAPI_KEY"},
	}
}

func newsAPIDeps() Deps {
	deps := testDeps()
	deps.Getenv = func(key string) string {
		if key == "TEST_NEWSAPI_KEY" {
			return "secret"
		}
		return ""
	}
	return deps
}

func TestNewsAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("Expected API key header, got '%s'", r.Header.Get("X-Api-Key"))
		}
		q := r.URL.Query()
		if q.Get("q") != "artificial intelligence" {
			t.Errorf("Expected query param, got '%s'", q.Get("q"))
		}
		if q.Get("pageSize") != "100" {
			t.Errorf("Expected page size capped at 100, got '%s'", q.Get("pageSize"))
		}
		if q.Get("from") != "2023-07-02T00:00:00Z" || q.Get("to") != "2023-07-05T00:00:00Z" {
			t.Errorf("Expected window bounds, got %s..%s", q.Get("from"), q.Get("to"))
		}
		if q.Get("apiKey") != "" {
			t.Error("Expected API key to stay out of the URL")
		}
		w.Write([]byte(testNewsAPIResponse))
	}))
	defer srv.Close()

	fetcher, err := NewNewsAPI(newsAPISource(srv.URL), newsAPIDeps())
	if err != nil {
		t.Fatal(err)
	}

	items, err := fetcher.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Venue != "TechCrunch" || first.Author != "Jane Doe" {
		t.Errorf("Expected venue and author, got %s / %s", first.Venue, first.Author)
	}
	if first.Thumbnail != "https://techcrunch.com/img.jpg" {
		t.Errorf("Expected thumbnail, got %s", first.Thumbnail)
	}
	if !first.Published.Equal(time.Date(2023, 7, 4, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("Expected published time, got %v", first.Published)
	}

	second := items[1]
	if second.Body != "Only content" {
		t.Errorf("Expected content fallback body, got %s", second.Body)
	}
	if !second.Published.IsZero() {
		t.Errorf("Expected zero time for unparsable date, got %v", second.Published)
	}
}

func TestNewsAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer srv.Close()

	fetcher, _ := NewNewsAPI(newsAPISource(srv.URL), newsAPIDeps())
	_, err := fetcher.Fetch(context.Background(), testWindow())
	if err == nil {
		t.Fatal("Expected error for invalid key")
	}
	if !strings.Contains(err.Error(), "apiKeyInvalid") {
		t.Errorf("Expected API error code in message, got %v", err)
	}
}

func TestNewsAPIMissingKey(t *testing.T) {
	_, err := NewNewsAPI(newsAPISource("http://localhost"), testDeps())
	if !source.IsConfigError(err) {
		t.Errorf("Expected ConfigError for missing API key, got %v", err)
	}
}
