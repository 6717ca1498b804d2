package rate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// incrWindowLua increments a fixed-window counter.
// KEYS[1] = counter key
// ARGV[1] = window in milliseconds
//
// Returns {count, ttl_ms}.
var incrWindowLua = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

var errNoClient = errors.New("no redis client configured")

// Config holds limiter settings.
type Config struct {
	// Prefix of every counter key. Defaults to "arl".
	Prefix string
	// Policies maps route names to budgets. Nil selects DefaultPolicies.
	Policies map[string]Policy
	// Default applies to routes missing from Policies. Zero selects
	// DefaultPolicy.
	Default Policy
	// DisableFallback surfaces Redis failures as ErrRedisUnavailable instead
	// of counting in process.
	DisableFallback bool
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	Count     int64
	// Degraded is set when the decision came from the in-process fallback.
	Degraded bool
}

// RetryAfter returns the time until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter enforces fixed-window request budgets keyed by identity and
// route.
type Limiter struct {
	redis    redis.UniversalClient
	config   Config
	logger   *zap.Logger
	fallback *memoryWindow
	degraded atomic.Bool
	now      func() time.Time
}

// New creates a [Limiter]. redisClient may be nil, in which case every
// decision comes from the in-process fallback.
func New(redisClient redis.UniversalClient, cfg Config, logger *zap.Logger) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "arl"
	}
	if cfg.Policies == nil {
		cfg.Policies = DefaultPolicies()
	}
	if !cfg.Default.valid() {
		cfg.Default = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		redis:    redisClient,
		config:   cfg,
		logger:   logger.Named("rate"),
		fallback: newMemoryWindow(),
		now:      time.Now,
	}
}

// Policy returns the budget configured for route.
func (l *Limiter) Policy(route string) Policy {
	if p, ok := l.config.Policies[route]; ok && p.valid() {
		return p
	}
	return l.config.Default
}

// CheckRoute runs [Limiter.Check] with the policy configured for route.
func (l *Limiter) CheckRoute(ctx context.Context, identity, route string) (Decision, error) {
	p := l.Policy(route)
	return l.Check(ctx, identity, route, p.Limit, p.Window)
}

// Check records one request for identity on route and reports whether it
// fits in the budget.
func (l *Limiter) Check(ctx context.Context, identity, route string, limit int, window time.Duration) (Decision, error) {
	if !(Policy{Limit: limit, Window: window}).valid() {
		return Decision{}, ErrInvalidPolicy
	}

	key := l.key(identity, route)
	now := l.now()

	count, resetAt, err := l.incrRedis(ctx, key, window, now)
	degraded := false
	if err != nil {
		if l.config.DisableFallback {
			return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		l.markDegraded(err)
		count, resetAt = l.fallback.incr(key, window, now)
		degraded = true
	} else {
		l.markHealthy()
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		Count:     count,
		Degraded:  degraded,
	}, nil
}

// Reset clears the counter for identity on route.
func (l *Limiter) Reset(ctx context.Context, identity, route string) error {
	key := l.key(identity, route)
	l.fallback.reset(key)

	if l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Degraded reports whether the last check fell back to in-process counting.
func (l *Limiter) Degraded() bool {
	return l.degraded.Load()
}

func (l *Limiter) key(identity, route string) string {
	return l.config.Prefix + ":" + identity + ":" + route
}

func (l *Limiter) incrRedis(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	if l.redis == nil {
		return 0, time.Time{}, errNoClient
	}

	vals, err := incrWindowLua.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script result length %d", len(vals))
	}

	return vals[0], now.Add(time.Duration(vals[1]) * time.Millisecond), nil
}

func (l *Limiter) markDegraded(err error) {
	if !l.degraded.Swap(true) {
		l.logger.Warn("rate limiter falling back to in-process counters", zap.Error(err))
	}
}

func (l *Limiter) markHealthy() {
	if l.degraded.Swap(false) {
		l.logger.Info("rate limiter redis recovered")
	}
}
