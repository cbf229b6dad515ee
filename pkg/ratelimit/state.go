// Package ratelimit implements a client-side request budget shared through Redis.
// Every process using the same Redis counts its requests in the same fixed
// window, so a fleet of clients stays polite towards the RateBeer API.
package ratelimit

import (
	"time"
)

// RedisKeyPrefix prefixes the per-window counter keys.
const RedisKeyPrefix = "ratebeer:rate_limit:window"

// ThrottleWarningRatio is the share of the budget after which state updates are logged as warnings.
const ThrottleWarningRatio = 0.8

// State is the request budget of the current window.
type State struct {
	// Used is the number of requests admitted in the current window.
	Used int `json:"used"`

	// Limit is the number of requests allowed per window.
	Limit int `json:"limit"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`
}

// Remaining returns how many requests the window still admits.
func (s *State) Remaining() int {
	if s.Used >= s.Limit {
		return 0
	}
	return s.Limit - s.Used
}

// Exhausted returns true when no request is admitted until the window resets.
func (s *State) Exhausted() bool {
	return s.Used > s.Limit
}

// NearLimit returns true when the window has used most of its budget.
func (s *State) NearLimit() bool {
	return float64(s.Used) >= float64(s.Limit)*ThrottleWarningRatio
}

// TimeUntilReset returns the duration until the window ends.
// Returns 0 if the window has already ended.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
