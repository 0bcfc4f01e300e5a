package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const maxRetries = 3

// backoffUnit scales the quadratic backoff; tests shrink it.
var backoffUnit = time.Second

// doWithRetry executes an HTTP request with exponential backoff retry
// for transient errors (network failures, 5xx, 429). Any other non-200
// status is returned immediately as a *ProviderError.
func doWithRetry(ctx context.Context, client *http.Client, name string, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr *ProviderError

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter to prevent thundering herd.
			base := time.Duration(attempt*attempt) * backoffUnit
			jitter := time.Duration(rand.Int63n(int64(base/2 + 1)))
			backoff := base + jitter
			logger.Warn("retrying request", "provider", name, "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, &ProviderError{Provider: name, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, &ProviderError{Provider: name, Err: fmt.Errorf("build request: %w", err)}
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &ProviderError{Provider: name, Err: ctx.Err()}
			}
			lastErr = &ProviderError{Provider: name, Err: err}
			if attempt < maxRetries {
				logger.Warn("request failed, will retry", "provider", name, "error", err)
				continue
			}
			break
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		perr := &ProviderError{Provider: name, StatusCode: resp.StatusCode, Body: string(body)}
		if !perr.Retryable() {
			return nil, perr
		}
		lastErr = perr
		if attempt < maxRetries {
			logger.Warn("server error, will retry",
				"provider", name, "status", resp.StatusCode, "body", string(body))
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}
