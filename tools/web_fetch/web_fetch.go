package web_fetch

import (
	"context"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/tools/web_fetch/chromedp"
	"github.com/briefly-ai/briefly/tools/web_fetch/models"
	"github.com/briefly-ai/briefly/tools/web_fetch/readability"
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	ReadabilityFetcherType FetcherType = "readability"
	ChromedpFetcherType    FetcherType = "chromedp"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

func NewWebFetcher(cfg config.FetchConfig) (WebFetcher, error) {
	switch FetcherType(cfg.Type) {
	case ReadabilityFetcherType:
		return readability.Fetch{Timeout: cfg.Timeout, MaxChars: cfg.MaxChars}, nil
	case ChromedpFetcherType:
		return chromedp.Fetch{Timeout: cfg.Timeout, MaxChars: cfg.MaxChars}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}

// Recorder receives the outcome of each fetch. The telemetry package
// satisfies it.
type Recorder interface {
	RecordFetch(err error)
}

// Adapter exposes a WebFetcher through the pipeline's Fetcher port.
type Adapter struct {
	Fetcher  WebFetcher
	Recorder Recorder // optional
}

func (a Adapter) Fetch(ctx context.Context, url string) (brief.PageContent, error) {
	res, err := a.Fetcher.Exec(ctx, url)
	if a.Recorder != nil {
		a.Recorder.RecordFetch(err)
	}
	if err != nil {
		return brief.PageContent{}, err
	}
	return brief.PageContent{URL: res.URL, Title: res.Title, Text: res.Text}, nil
}
