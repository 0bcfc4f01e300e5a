package provider

import (
	"fmt"
	"net/http"
)

// ProviderError reports a failed completion: transport, auth, rate limit or
// a malformed response. StatusCode is 0 when no HTTP response was received.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s %d: %v", e.Provider, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return e.Provider + ": unknown error"
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient (network, 5xx, 429).
func (e *ProviderError) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
