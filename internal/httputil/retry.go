// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// transient failures. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// RequestBuilder constructs the request for a single attempt. Signed
// requests carry a timestamp header, so every retry needs a freshly
// built and freshly signed request rather than a clone of the first.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Transient reports whether an HTTP status is worth retrying:
// 429 (Too Many Requests) and any 5xx.
func Transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request and retries transient failures
// (HTTP 429, 5xx, transport errors) with exponential backoff. The delay
// starts at RetryBaseDelay (2 s) and doubles each attempt: 2 s, 4 s, 8 s.
//
// When maxRetries is 0 the default (3) is used. On each transient
// response the body is drained and closed before sleeping. If the
// context is cancelled during a backoff wait the function returns
// ctx.Err(). After exhausting retries the last transient response is
// returned so the caller can inspect it; a persistent transport error
// is returned wrapped.
func DoWithRetry(ctx context.Context, client *http.Client, build RequestBuilder, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && !Transient(resp.StatusCode) {
			return resp, nil
		}

		// Exhausted retries — return the last transient outcome as-is.
		if attempt >= maxRetries {
			if err != nil {
				return nil, fmt.Errorf("after %d attempts: %w", attempt+1, err)
			}
			return resp, nil
		}

		if err == nil {
			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
