package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// RetryMetrics counts retry attempts. Satisfied by monitoring.Metrics.
type RetryMetrics interface {
	IncFetchRetries()
}

// RetryingFetcher wraps a Fetcher with up to maxRetries additional attempts
// and a fixed delay between failed attempts. The same policy applies to
// listing pages and detail pages alike.
type RetryingFetcher struct {
	inner      Fetcher
	maxRetries int
	delay      time.Duration
	metrics    RetryMetrics
	logger     *zap.Logger
}

func NewRetryingFetcher(inner Fetcher, maxRetries int, delay time.Duration, m RetryMetrics, l *zap.Logger) *RetryingFetcher {
	return &RetryingFetcher{
		inner:      inner,
		maxRetries: maxRetries,
		delay:      delay,
		metrics:    m,
		logger:     l,
	}
}

// Fetch makes maxRetries+1 attempts and returns the first success. It never
// sleeps after the final failed attempt, and the sleep honors ctx so
// interactive callers can abort a run between attempts.
func (f *RetryingFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxRetries+1; attempt++ {
		doc, err := f.inner.Fetch(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		f.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt > f.maxRetries {
			break
		}
		if f.metrics != nil {
			f.metrics.IncFetchRetries()
		}
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", url, f.maxRetries+1, lastErr)
}
