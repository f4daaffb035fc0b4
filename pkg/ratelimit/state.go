// Package ratelimit throttles requests to the JupiterOne APIs and shares
// 429 cool-down windows between client instances through Redis.
//
// A Tracker combines two gates: an optional token bucket
// (golang.org/x/time/rate) bounding the request rate of one process, and a
// cool-down window opened whenever the server answers with Retry-After.
// With a Redis client the window is shared by every tracker of the account.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RedisKeyPrefix prefixes every key the tracker stores in Redis.
const RedisKeyPrefix = "jupiterone:rate_limit"

func cooldownKey(account string) string {
	return RedisKeyPrefix + ":" + account + ":cooldown_until"
}

// RateLimitState represents the current cool-down state of one account.
type RateLimitState struct {
	Account string `json:"account"`

	// CooldownUntil is the earliest time a new request may be sent.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastUpdate is when this tracker last observed a Retry-After.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// CoolingDown reports whether requests must wait before being sent.
func (s *RateLimitState) CoolingDown() bool {
	return s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the cool-down ends.
// Returns 0 if the cool-down has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.CooldownUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// ParseRetryAfter parses a Retry-After header given either as delay seconds
// or as an HTTP date.
func ParseRetryAfter(headers http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(headers.Get("Retry-After"))
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	if wait := at.Sub(now); wait > 0 {
		return wait, true
	}
	return 0, true
}
