package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for error budget tracking.
var (
	errorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slotscope_errors_remaining",
		Help: "Number of errors remaining in the current outbound error budget window",
	})

	budgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slotscope_error_budget_blocks_total",
		Help: "Total number of requests blocked due to critical error budget",
	})

	budgetThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slotscope_error_budget_throttles_total",
		Help: "Total number of requests throttled due to warning error budget",
	})
)

// Tracker monitors the outbound error budget and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new error budget tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current budget state from Redis.
// Returns a full, healthy budget if no state exists or the window has reset.
func (t *Tracker) GetState(ctx context.Context) (*BudgetState, error) {
	remaining, err := t.redis.Get(ctx, RedisKeyErrorsRemaining).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get errors remaining: %w", err)
	}

	// No state in Redis yet: full budget.
	if err == redis.Nil {
		t.logger.Debug().Msg("No error budget state in Redis, returning full budget")
		return t.freshState(), nil
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	resetAt := time.Unix(resetTimestamp, 0)

	// Window has passed: start a fresh one.
	if time.Now().After(resetAt) {
		if err := t.resetWindow(ctx); err != nil {
			return nil, err
		}
		return t.freshState(), nil
	}

	lastUpdateTimestamp, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &BudgetState{
		ErrorsRemaining: remaining,
		ResetAt:         resetAt,
		LastUpdate:      time.Unix(lastUpdateTimestamp, 0),
	}
	state.UpdateHealth()

	return state, nil
}

// RecordError drains one error from the budget. Called by the client
// whenever a request fails at the transport level or with a server error.
func (t *Tracker) RecordError(ctx context.Context) error {
	now := time.Now()

	// Initialize the window on first error so the counter can decrement
	// atomically across workers.
	pipe := t.redis.Pipeline()
	pipe.SetNX(ctx, RedisKeyErrorsRemaining, BudgetSize, 0)
	pipe.SetNX(ctx, RedisKeyResetTimestamp, now.Add(WindowLength).Unix(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("initialize error budget window: %w", err)
	}

	remaining, err := t.redis.Decr(ctx, RedisKeyErrorsRemaining).Result()
	if err != nil {
		return fmt.Errorf("decrement error budget: %w", err)
	}
	if err := t.redis.Set(ctx, RedisKeyLastUpdate, now.Unix(), 0).Err(); err != nil {
		return fmt.Errorf("store last update: %w", err)
	}

	errorsRemaining.Set(float64(remaining))

	state := &BudgetState{ErrorsRemaining: int(remaining)}
	state.UpdateHealth()

	logEvent := t.logger.Info().Int64("errors_remaining", remaining)
	if state.NeedsCriticalBlock() {
		logEvent = t.logger.Error().Int64("errors_remaining", remaining)
		logEvent.Msg("Error budget CRITICAL - requests will be blocked")
	} else if state.NeedsThrottling() {
		logEvent = t.logger.Warn().Int64("errors_remaining", remaining)
		logEvent.Msg("Error budget WARNING - requests will be throttled")
	} else {
		logEvent.Msg("Error recorded against budget")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on the
// current budget state. Returns false if the request should be blocked.
// Returns true but may sleep for throttling when in the warning state.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get error budget state: %w", err)
	}

	// Critical: block all requests until the window resets.
	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("errors_remaining", state.ErrorsRemaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Error budget critical - blocking request")

		budgetBlocksTotal.Inc()
		return false, nil
	}

	// Warning: apply throttling (1 second sleep).
	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("errors_remaining", state.ErrorsRemaining).
			Msg("Error budget warning - throttling request")

		budgetThrottlesTotal.Inc()
		time.Sleep(1 * time.Second)
	}

	return true, nil
}

// freshState returns a full budget starting a new window.
func (t *Tracker) freshState() *BudgetState {
	now := time.Now()
	return &BudgetState{
		ErrorsRemaining: BudgetSize,
		ResetAt:         now.Add(WindowLength),
		LastUpdate:      now,
		IsHealthy:       true,
	}
}

// resetWindow writes a full budget and a new window end to Redis.
func (t *Tracker) resetWindow(ctx context.Context) error {
	now := time.Now()

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyErrorsRemaining, BudgetSize, 0)
	pipe.Set(ctx, RedisKeyResetTimestamp, now.Add(WindowLength).Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, now.Unix(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset error budget window: %w", err)
	}

	errorsRemaining.Set(float64(BudgetSize))
	t.logger.Info().Msg("Error budget window reset")

	return nil
}
