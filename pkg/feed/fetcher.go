package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/mmcdole/gofeed"
)

// Fetcher retrieves and parses RSS/Atom feeds over HTTP. A fetch makes up to
// two attempts with a fixed one second pause between them; a feed that parses
// to zero entries is reported as an error because the source produced nothing
// usable despite the transport succeeding.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a feed fetcher with the given per-request timeout.
// Redirects are followed by the default client policy.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch retrieves and parses a feed from the given URL
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]*gofeed.Item, error) {
	return f.FetchLimited(ctx, url, 0)
}

// FetchLimited retrieves and parses a feed, consuming at most limit entries.
// limit <= 0 means no cap.
func (f *Fetcher) FetchLimited(ctx context.Context, url string, limit int) ([]*gofeed.Item, error) {
	var body []byte
	retrier := repeater.NewFixed(2, time.Second)
	err := retrier.Do(ctx, func() error {
		var e error
		body, e = f.get(ctx, url)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("feed %s has no entries", url)
	}

	items := parsed.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// FetchPage retrieves an arbitrary page body, used for image fallback lookups
func (f *Fetcher) FetchPage(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return f.get(ctx, url)
}

// get performs a single GET attempt
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
