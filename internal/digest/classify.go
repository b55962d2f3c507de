package digest

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

const maxMessageLength = 200

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// retryAfterer is implemented by errors that carry a provider retry hint.
type retryAfterer interface {
	RetryAfter() time.Duration
}

// classifyFailure maps a generator error to FAILED with RATE_LIMITED or
// PROVIDER_ERROR. Every error in the chain is inspected, including joined ones.
// A typed HTTP status anywhere in the chain is authoritative; the "429" text
// match only applies to chains that carry no status at all.
func classifyFailure(err error) (model.Reason, time.Duration) {
	typed, limited, textLimited := false, false, false
	var hint time.Duration
	walkErrors(err, func(e error) {
		if sc, ok := e.(statusCoder); ok {
			typed = true
			if sc.HTTPStatus() == http.StatusTooManyRequests {
				limited = true
			}
		}
		if ra, ok := e.(retryAfterer); ok && ra.RetryAfter() > 0 && hint == 0 {
			hint = ra.RetryAfter()
		}
		if strings.Contains(e.Error(), "429") {
			textLimited = true
		}
	})
	if limited || (!typed && textLimited) {
		return model.ReasonRateLimited, hint
	}
	return model.ReasonProviderError, 0
}

func walkErrors(err error, visit func(error)) {
	if err == nil {
		return
	}
	visit(err)
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		walkErrors(u.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			walkErrors(e, visit)
		}
	}
}

// failureMessage describes err for callers, shortened to a readable length.
func failureMessage(reason model.Reason, err error) string {
	prefix := "digest generation failed: "
	if reason == model.ReasonRateLimited {
		prefix = "digest generation was rate limited: "
	}
	if errors.Is(err, model.ErrEmptyOutput) {
		return prefix + "model returned an empty digest"
	}
	return prefix + shorten(err.Error(), maxMessageLength)
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
