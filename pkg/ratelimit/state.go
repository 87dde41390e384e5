// Package ratelimit implements an outbound error budget with request gating.
// The scheduling API publishes no rate-limit headers, so the budget is
// maintained client-side: transport and server errors drain it, and the
// gate throttles or blocks requests as it runs low. The state is shared
// across concurrent workers and repeated runs via Redis.
package ratelimit

import (
	"time"
)

// Redis keys for error budget state storage.
const (
	RedisKeyErrorsRemaining = "slotscope:error_budget:errors_remaining"
	RedisKeyResetTimestamp  = "slotscope:error_budget:reset_timestamp"
	RedisKeyLastUpdate      = "slotscope:error_budget:last_update"
)

// Budget sizing and gating thresholds.
const (
	// BudgetSize is the number of errors tolerated per window.
	BudgetSize = 100

	// WindowLength is how long a budget window lasts before resetting.
	WindowLength = 60 * time.Second

	// ErrorThresholdCritical blocks all requests when errors remaining
	// falls below this value. A drained budget means the remote service
	// is failing hard or rejecting us; hammering it further risks a ban.
	ErrorThresholdCritical = 5

	// ErrorThresholdWarning applies throttling when errors remaining
	// falls below this value, slowing the request rate so the budget
	// drains more slowly.
	ErrorThresholdWarning = 20

	// ErrorThresholdHealthy indicates normal operation.
	// At or above this value, no restrictions apply.
	ErrorThresholdHealthy = 50
)

// BudgetState represents the current outbound error budget.
// This state is shared across all client instances via Redis.
type BudgetState struct {
	// ErrorsRemaining is the number of errors left before the gate
	// blocks outbound requests.
	ErrorsRemaining int `json:"errors_remaining"`

	// ResetAt is the timestamp when the budget window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy indicates whether the budget is in a healthy state.
	// True when ErrorsRemaining >= ErrorThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *BudgetState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked because
// the budget is nearly drained.
func (s *BudgetState) NeedsCriticalBlock() bool {
	return s.ErrorsRemaining < ErrorThresholdCritical
}

// NeedsThrottling returns true if requests should be throttled due to
// the warning threshold.
func (s *BudgetState) NeedsThrottling() bool {
	return s.ErrorsRemaining < ErrorThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the budget window resets.
// Returns 0 if the reset time has already passed.
func (s *BudgetState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current ErrorsRemaining.
func (s *BudgetState) UpdateHealth() {
	s.IsHealthy = s.ErrorsRemaining >= ErrorThresholdHealthy
}
