package adapter

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

// Fetcher returns the raw items one source published inside a window. An
// implementation makes one bounded network call per logical request and does
// not retry; any problem is returned as a single error.
type Fetcher interface {
	Fetch(ctx context.Context, window item.Window) ([]item.Raw, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, window item.Window) ([]item.Raw, error)

func (f FetcherFunc) Fetch(ctx context.Context, window item.Window) ([]item.Raw, error) {
	return f(ctx, window)
}

type Deps struct {
	HTTPClient *http.Client
	UserAgent  string
	Getenv     func(string) string
}

// Factory builds the fetcher for one configured source. Returning a
// *source.ConfigError marks the source configuration as unusable.
type Factory func(src *source.Config, deps Deps) (Fetcher, error)

type Registry struct {
	deps      Deps
	mu        sync.RWMutex
	factories map[item.Kind]Factory
}

func NewRegistry(deps Deps) *Registry {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	return &Registry{
		deps:      deps,
		factories: make(map[item.Kind]Factory),
	}
}

// NewDefaultRegistry returns a registry with every built-in source kind.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry(deps)
	r.Register(item.KindRSS, NewRSS)
	r.Register(item.KindArxiv, NewArxiv)
	r.Register(item.KindNewsAPI, NewNewsAPI)
	r.Register(item.KindHackerNews, NewHackerNews)
	r.Register(item.KindScrape, NewScrape)
	return r
}

func (r *Registry) Register(kind item.Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

func (r *Registry) Build(src *source.Config) (Fetcher, error) {
	r.mu.RLock()
	factory, ok := r.factories[src.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, source.NewConfigError(src.Name, "kind", "no adapter registered for kind %q", src.Kind)
	}
	return factory(src, r.deps)
}
