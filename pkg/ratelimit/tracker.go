package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jupiterone_rate_limit_waits_total",
		Help: "Total number of requests delayed before being sent",
	}, []string{"reason"}) // "cooldown", "throttle"

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jupiterone_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting before being sent",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60},
	}, []string{"reason"})

	rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jupiterone_rate_limit_cooldowns_total",
		Help: "Total number of Retry-After cool-downs observed",
	})
)

// Tracker gates requests of one account.
type Tracker struct {
	redis   *redis.Client
	limiter *rate.Limiter
	account string
	logger  zerolog.Logger

	mu    sync.Mutex
	local RateLimitState
}

// NewTracker creates a new rate limit tracker. redisClient may be nil, in
// which case the cool-down is kept in process. requestsPerSecond <= 0
// disables the throttle.
func NewTracker(redisClient *redis.Client, account string, requestsPerSecond float64, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		redis:   redisClient,
		account: account,
		logger:  logger,
		local:   RateLimitState{Account: account},
	}
	if requestsPerSecond > 0 {
		burst := int(math.Ceil(requestsPerSecond))
		t.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return t
}

// GetState returns the current cool-down state, merging the shared Redis
// window with the one observed locally.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	t.mu.Lock()
	state := t.local
	t.mu.Unlock()

	if t.redis == nil {
		return &state, nil
	}

	untilMillis, err := t.redis.Get(ctx, cooldownKey(t.account)).Int64()
	if errors.Is(err, redis.Nil) {
		return &state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cooldown: %w", err)
	}

	if shared := time.UnixMilli(untilMillis); shared.After(state.CooldownUntil) {
		state.CooldownUntil = shared
	}
	return &state, nil
}

// ObserveRetryAfter opens a cool-down window of length wait.
func (t *Tracker) ObserveRetryAfter(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}

	now := time.Now()
	until := now.Add(wait)

	t.mu.Lock()
	if until.After(t.local.CooldownUntil) {
		t.local.CooldownUntil = until
	}
	t.local.LastUpdate = now
	t.mu.Unlock()

	rateLimitCooldownsTotal.Inc()
	t.logger.Warn().
		Str("account", t.account).
		Dur("retry_after", wait).
		Msg("Rate limited by server, cooling down")

	if t.redis == nil {
		return nil
	}
	if err := t.redis.Set(ctx, cooldownKey(t.account), until.UnixMilli(), wait).Err(); err != nil {
		return fmt.Errorf("store cooldown in redis: %w", err)
	}
	return nil
}

// Wait blocks until a request may be sent: first until any cool-down has
// passed, then until the throttle grants a token.
// An unreadable shared state is logged and ignored.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Rate limit state unavailable, continuing")
	} else if wait := state.TimeUntilReset(); wait > 0 {
		rateLimitWaitsTotal.WithLabelValues("cooldown").Inc()
		rateLimitWaitSeconds.WithLabelValues("cooldown").Observe(wait.Seconds())
		t.logger.Debug().Dur("wait", wait).Msg("Waiting for cool-down")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if t.limiter == nil {
		return nil
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		rateLimitWaitsTotal.WithLabelValues("throttle").Inc()
		rateLimitWaitSeconds.WithLabelValues("throttle").Observe(waited.Seconds())
	}
	return nil
}
