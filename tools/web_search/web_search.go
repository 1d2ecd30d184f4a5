package web_search

import (
	"context"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/tools/web_search/brave"
	"github.com/briefly-ai/briefly/tools/web_search/models"
	"github.com/briefly-ai/briefly/tools/web_search/serper"
)

type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

func NewWebSearcher(cfg config.SearchConfig) (WebSearcher, error) {
	switch Provider(cfg.Provider) {
	case SerperProvider:
		return serper.Search{ApiKey: cfg.SerperAPIKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: cfg.BraveAPIKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// Adapter exposes a WebSearcher through the pipeline's Searcher port,
// applying the configured per-query timeout.
type Adapter struct {
	Searcher WebSearcher
	Cfg      config.SearchConfig
}

func (a Adapter) Search(ctx context.Context, query string, k int) ([]brief.SearchHit, error) {
	if a.Cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Cfg.Timeout)
		defer cancel()
	}
	results, err := a.Searcher.Discover(ctx, query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]brief.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, brief.SearchHit{URL: r.URL, Title: r.Title, Snippet: r.Snippet})
	}
	return hits, nil
}
