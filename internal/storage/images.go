package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ImageFetcher downloads image bytes with the same retry-with-delay policy
// the page fetcher uses.
type ImageFetcher struct {
	client     *http.Client
	maxRetries int
	delay      time.Duration
	logger     *zap.Logger
}

func NewImageFetcher(timeout time.Duration, maxRetries int, delay time.Duration, logger *zap.Logger) *ImageFetcher {
	return &ImageFetcher{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		delay:      delay,
		logger:     logger,
	}
}

// WithClient swaps the underlying HTTP client, mainly for tests.
func (f *ImageFetcher) WithClient(c *http.Client) *ImageFetcher {
	f.client = c
	return f
}

func (f *ImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxRetries+1; attempt++ {
		data, err := f.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		f.logger.Warn("image download attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt > f.maxRetries {
			break
		}
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("download %s failed after %d attempts: %w", url, f.maxRetries+1, lastErr)
}

func (f *ImageFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	return data, nil
}
