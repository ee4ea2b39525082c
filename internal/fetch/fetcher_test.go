package fetch

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"go.uber.org/zap"
)

func newMockedFetcher(transport *httpmock.MockTransport) *HTTPFetcher {
	return NewHTTPFetcher(5 * time.Second).WithClient(&http.Client{Transport: transport})
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestHTTPFetcherParsesDocument(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://site.test/page",
		htmlResponder(`<html><body><h1 class="headline">Hello</h1></body></html>`))

	doc, err := newMockedFetcher(transport).Fetch(context.Background(), "http://site.test/page")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := doc.Find("h1.headline").Text(); got != "Hello" {
		t.Fatalf("headline = %q, want %q", got, "Hello")
	}
}

func TestHTTPFetcherFailsOnBadStatusAndEmptyBody(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{name: "server error", responder: httpmock.NewStringResponder(503, "down")},
		{name: "not found", responder: httpmock.NewStringResponder(404, "")},
		{name: "empty body", responder: httpmock.NewStringResponder(200, "")},
		{name: "whitespace body", responder: httpmock.NewStringResponder(200, "  \n ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", "http://site.test/page", tt.responder)

			if _, err := newMockedFetcher(transport).Fetch(context.Background(), "http://site.test/page"); err == nil {
				t.Fatalf("expected fetch error")
			}
		})
	}
}

func TestRetryingFetcherStopsAfterFirstSuccess(t *testing.T) {
	var attempts int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://site.test/flaky",
		func(req *http.Request) (*http.Response, error) {
			if atomic.AddInt32(&attempts, 1) < 2 {
				return httpmock.NewStringResponse(500, ""), nil
			}
			return htmlResponder(`<html><body>ok</body></html>`)(req)
		})

	f := NewRetryingFetcher(newMockedFetcher(transport), 2, 0, nil, zap.NewNop())
	if _, err := f.Fetch(context.Background(), "http://site.test/flaky"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("attempts = %d, want 2 (no retry after success)", got)
	}
}

func TestRetryingFetcherAttemptBound(t *testing.T) {
	var attempts int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://site.test/down",
		func(*http.Request) (*http.Response, error) {
			atomic.AddInt32(&attempts, 1)
			return httpmock.NewStringResponse(500, ""), nil
		})

	const maxRetries = 2
	f := NewRetryingFetcher(newMockedFetcher(transport), maxRetries, 0, nil, zap.NewNop())
	if _, err := f.Fetch(context.Background(), "http://site.test/down"); err == nil {
		t.Fatalf("expected terminal failure")
	}
	if got := atomic.LoadInt32(&attempts); got != maxRetries+1 {
		t.Fatalf("attempts = %d, want %d", got, maxRetries+1)
	}
}

func TestRetryingFetcherWaitsBetweenAttemptsOnly(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://site.test/down",
		httpmock.NewStringResponder(500, ""))

	const delay = 30 * time.Millisecond
	f := NewRetryingFetcher(newMockedFetcher(transport), 2, delay, nil, zap.NewNop())

	start := time.Now()
	_, err := f.Fetch(context.Background(), "http://site.test/down")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected terminal failure")
	}
	// 3 attempts, 2 waits: no sleep after the final failed attempt.
	if elapsed < 2*delay {
		t.Fatalf("elapsed %v, want at least %v", elapsed, 2*delay)
	}
	if elapsed >= 3*delay {
		t.Fatalf("elapsed %v suggests a sleep after the last attempt", elapsed)
	}
}

func TestRetryingFetcherHonorsContextDuringDelay(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://site.test/down",
		httpmock.NewStringResponder(500, ""))

	ctx, cancel := context.WithCancel(context.Background())
	f := NewRetryingFetcher(newMockedFetcher(transport), 5, time.Hour, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "http://site.test/down")
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch did not abort on context cancellation")
	}
}
