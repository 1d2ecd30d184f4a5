package readability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/briefly-ai/briefly/tools/web_fetch/models"
)

const userAgent = "BrieflyBot/1.0 (+https://github.com/briefly-ai/briefly)"

// Fetch retrieves pages over plain HTTP and extracts the main content with
// readability. It is the default fetcher; sites that need JS rendering are
// the chromedp fetcher's job.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int
	Client   *http.Client // optional, for tests
}

func (f Fetch) Exec(ctx context.Context, link string) (models.Result, error) {
	if strings.TrimSpace(link) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return models.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Result{}, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Result{URL: link, Status: resp.StatusCode}, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, mustParseURL(link))
	if err != nil {
		return models.Result{URL: link, Status: resp.StatusCode}, fmt.Errorf("extract %s: %w", link, err)
	}

	text := models.Truncate(strings.TrimSpace(article.TextContent), f.MaxChars)

	return models.Result{
		URL:         link,
		Title:       strings.TrimSpace(article.Title),
		Byline:      strings.TrimSpace(article.Byline),
		PublishedAt: "",
		Text:        text,
		Status:      resp.StatusCode,
		FetchMS:     int(time.Since(t0) / time.Millisecond),
	}, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
