// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the provider and AI clients.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 and 503 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// Requester sends HTTP requests with optional client-side rate limiting
// and retries on throttling responses.
type Requester struct {
	Client *http.Client

	// Limiter paces outgoing requests. Nil disables pacing.
	Limiter *rate.Limiter

	// MaxRetries is the number of retries on 429/503; 0 uses the default (3).
	MaxRetries int
}

// NewRequester returns a Requester allowing rps requests per second with
// a burst of one. rps <= 0 disables pacing.
func NewRequester(client *http.Client, rps float64) *Requester {
	r := &Requester{Client: client}
	if rps > 0 {
		r.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return r
}

// Do waits for the limiter, executes the request, and retries on HTTP 429
// (Too Many Requests) and 503 (Service Unavailable). The delay doubles each
// attempt starting at RetryBaseDelay unless the server sends a Retry-After
// header in seconds. If the context is cancelled while waiting the function
// returns ctx.Err(). After exhausting retries the last throttled response
// is returned so the caller can inspect it.
func (r *Requester) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		backoff := retryAfter(resp.Header.Get("Retry-After"))
		if backoff == 0 {
			backoff = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// retryAfter parses a Retry-After header given in seconds. HTTP dates and
// garbage yield zero.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
