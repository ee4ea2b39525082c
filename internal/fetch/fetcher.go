package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher performs a single HTTP GET and parses the body into a document.
// It carries no retry logic of its own.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// HTTPFetcher fetches pages over plain HTTP. A transport error, non-2xx
// status, or empty body all count as a failed fetch.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// WithClient swaps the underlying HTTP client, mainly for tests.
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", url)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse body of %s: %w", url, err)
	}
	return doc, nil
}
