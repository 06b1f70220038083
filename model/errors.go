package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProviderError wraps a failure reported by a model backend, preserving the
// structured status code / error code where the SDK exposes one so transient
// classification does not have to rely on message text alone.
type ProviderError struct {
	Provider   string
	StatusCode int    // HTTP status, 0 when unknown
	Code       string // provider-specific error code, may be empty
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// transientKeywords match provider failure messages worth retrying when no
// structured status code is available.
var transientKeywords = []string{
	"rate limit",
	"rate_limit",
	"429",
	"quota",
	"resource exhausted",
	"resourceexhausted",
	"503",
	"service unavailable",
	"temporarily unavailable",
	"overloaded",
	"timeout",
	"timed out",
	"deadline_exceeded",
	"deadline exceeded",
	"connection",
}

// IsTransient reports whether the error looks like a transient provider
// failure worth retrying. Status codes take precedence; message keywords are
// the fallback. Local context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode > 0 {
		switch pe.StatusCode {
		case 408, 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
