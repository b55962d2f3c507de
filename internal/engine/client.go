package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI, local models, etc.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	defaultHTTPTimeout = 60 * time.Second
	maxAttempts        = 2
)

// APIError is a non-200 answer from a model provider.
type APIError struct {
	StatusCode     int
	Body           string
	RetryAfterHint time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the provider's status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// RetryAfter returns the provider's Retry-After hint, or zero.
func (e *APIError) RetryAfter() time.Duration { return e.RetryAfterHint }

// isRetryable returns true for server errors. A 429 is deliberately not
// retried here: throttling is reported upward so callers can back off.
func (e *APIError) isRetryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	return &APIError{
		StatusCode:     resp.StatusCode,
		Body:           strings.TrimSpace(string(body)),
		RetryAfterHint: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// completeWithRetry runs one provider request, retrying once with backoff on
// transient failures.
func completeWithRetry(ctx context.Context, provider string, do func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := do(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var ae *APIError
		if errors.As(err, &ae) && !ae.isRetryable() {
			return "", fmt.Errorf("%s: %w", provider, err)
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", provider, ctx.Err())
		}

		if attempt < maxAttempts-1 {
			backoff := time.Duration(attempt+1) * 2 * time.Second
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%s: %w", provider, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("%s: %w", provider, lastErr)
}
