package model

import (
	"encoding/json"
	"time"
)

// RefreshStatus is the closed set of refresh attempt results.
type RefreshStatus string

// Refresh status constants
const (
	RefreshSuccess  RefreshStatus = "SUCCESS"
	RefreshSkipped  RefreshStatus = "SKIPPED"
	RefreshFailed   RefreshStatus = "FAILED"
	RefreshConflict RefreshStatus = "CONFLICT"
)

// Reason explains a SKIPPED, FAILED or CONFLICT outcome.
type Reason string

// Reason constants
const (
	ReasonNoScraps          Reason = "NO_SCRAPS"
	ReasonNotOutdated       Reason = "NOT_OUTDATED"
	ReasonNoMeaningfulInput Reason = "NO_MEANINGFUL_INPUT"
	ReasonRateLimited       Reason = "RATE_LIMITED"
	ReasonProviderError     Reason = "PROVIDER_ERROR"
	ReasonInProgress        Reason = "DIGEST_REFRESH_IN_PROGRESS"
)

// Outcome describes one refresh attempt. It is never persisted.
type Outcome struct {
	Status      RefreshStatus `json:"status"`
	Reason      Reason        `json:"error_code,omitempty"`
	Message     string        `json:"message,omitempty"`
	RetryAfter  time.Duration `json:"-"`
	AttemptedAt time.Time     `json:"attempted_at"`
	AttemptID   string        `json:"attempt_id,omitempty"`
}

// RetryAfterSeconds returns the provider hint in whole seconds, or nil.
func (o Outcome) RetryAfterSeconds() *int {
	if o.RetryAfter <= 0 {
		return nil
	}
	s := int((o.RetryAfter + time.Second - 1) / time.Second)
	return &s
}

// RateLimited reports whether the attempt failed because the provider throttled it.
func (o Outcome) RateLimited() bool {
	return o.Status == RefreshFailed && o.Reason == ReasonRateLimited
}

// MarshalJSON adds retry_after_seconds when a hint is present.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(struct {
		alias
		RetryAfterSeconds *int `json:"retry_after_seconds,omitempty"`
	}{alias(o), o.RetryAfterSeconds()})
}
