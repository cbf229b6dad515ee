package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the request budget.
var (
	requestsInWindow = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratebeer_rate_limit_window_requests",
		Help: "Number of requests admitted in the current rate limit window",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratebeer_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the window budget was used up",
	})
)

// Config holds the request budget.
type Config struct {
	// Requests is the number of requests allowed per window (<= 0 disables limiting)
	Requests int

	// Window is the length of a counting window
	Window time.Duration

	// KeyPrefix overrides RedisKeyPrefix (useful to share or isolate budgets)
	KeyPrefix string
}

// DefaultConfig returns a budget of 5 requests per second.
func DefaultConfig() Config {
	return Config{
		Requests:  5,
		Window:    time.Second,
		KeyPrefix: RedisKeyPrefix,
	}
}

// Limiter admits requests within a fixed-window budget kept in Redis.
type Limiter struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewLimiter creates a new request budget limiter.
func NewLimiter(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = RedisKeyPrefix
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
}

// Enabled reports whether the limiter restricts anything.
func (l *Limiter) Enabled() bool {
	return l.config.Requests > 0
}

// Acquire counts one request against the current window.
// It returns false and the time left in the window if the budget is used up.
func (l *Limiter) Acquire(ctx context.Context) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}

	now := time.Now()
	key, resetAt := l.window(now)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr window counter: %w", err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, 2*l.config.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire window counter: %w", err)
		}
	}

	requestsInWindow.Set(float64(count))

	state := &State{Used: int(count), Limit: l.config.Requests, ResetAt: resetAt}
	if state.Exhausted() {
		return false, state.TimeUntilReset(), nil
	}
	if state.NearLimit() {
		l.logger.Debug().
			Int("used", state.Used).
			Int("limit", state.Limit).
			Msg("Request budget nearly used up")
	}
	return true, 0, nil
}

// Wait blocks until the request is admitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		allowed, wait, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		throttlesTotal.Inc()
		l.logger.Warn().
			Int("limit", l.config.Requests).
			Dur("wait_duration", wait).
			Msg("Request budget used up - throttling request")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GetState returns the budget of the current window without consuming it.
func (l *Limiter) GetState(ctx context.Context) (*State, error) {
	key, resetAt := l.window(time.Now())

	used, err := l.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get window counter: %w", err)
	}

	return &State{
		Used:    used,
		Limit:   l.config.Requests,
		ResetAt: resetAt,
	}, nil
}

func (l *Limiter) window(now time.Time) (string, time.Time) {
	index := now.UnixNano() / int64(l.config.Window)
	resetAt := time.Unix(0, (index+1)*int64(l.config.Window))
	return l.config.KeyPrefix + ":" + strconv.FormatInt(index, 10), resetAt
}
