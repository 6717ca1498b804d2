package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
)

func withLoginPolicy(limit int) func(*Config) {
	return func(cfg *Config) {
		cfg.RateLimit.Policies = map[string]rate.Policy{
			RouteLogin: {Limit: limit, Window: time.Minute},
		}
	}
}

func TestCheckRateLimitByIP(t *testing.T) {
	env := newTestEnv(t, withLoginPolicy(2))
	ctx := WithClientIP(context.Background(), "198.51.100.1")

	for i := 0; i < 2; i++ {
		d, err := env.engine.CheckRateLimit(ctx, RouteLogin, "")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d should pass: %+v %v", i, d, err)
		}
	}

	d, err := env.engine.CheckRateLimit(ctx, RouteLogin, "")
	if !errors.Is(err, ErrTooManyRequests) || !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
	if d.Allowed || d.Remaining != 0 || d.Limit != 2 {
		t.Fatalf("unexpected decision %+v", d)
	}
	if RetryAfter(d, time.Now()) < 1 {
		t.Fatal("retry-after must be at least one second")
	}

	other := WithClientIP(context.Background(), "198.51.100.2")
	if _, err := env.engine.CheckRateLimit(other, RouteLogin, ""); err != nil {
		t.Fatalf("other IP should pass: %v", err)
	}
	if env.engine.MetricsSnapshot().Counters[MetricRateLimitHit] != 1 {
		t.Fatal("rate-limit hit not counted")
	}
}

func TestCheckRateLimitUsesSubjectForBearer(t *testing.T) {
	env := newTestEnv(t, withLoginPolicy(1))
	env.register(t, "vic@example.com")
	token, err := env.engine.Login(context.Background(), "vic@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	ctx := WithClientIP(context.Background(), "198.51.100.3")
	if _, err := env.engine.CheckRateLimit(ctx, RouteLogin, ""); err != nil {
		t.Fatalf("first anonymous request failed: %v", err)
	}
	if _, err := env.engine.CheckRateLimit(ctx, RouteLogin, ""); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected anonymous limit, got %v", err)
	}
	if _, err := env.engine.CheckRateLimit(ctx, RouteLogin, token); err != nil {
		t.Fatalf("authenticated request has its own budget: %v", err)
	}
	if _, err := env.engine.CheckRateLimit(ctx, RouteLogin, "garbage"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("invalid bearer should fall back to the IP identity, got %v", err)
	}
}

func TestCheckRateLimitFallsBackWhenRedisDown(t *testing.T) {
	env := newTestEnv(t, withLoginPolicy(1))
	ctx := WithClientIP(context.Background(), "198.51.100.4")
	env.mr.Close()

	d, err := env.engine.CheckRateLimit(ctx, RouteLogin, "")
	if err != nil || !d.Degraded {
		t.Fatalf("expected degraded allow, got %+v %v", d, err)
	}
	if _, err := env.engine.CheckRateLimit(ctx, RouteLogin, ""); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("fallback should still enforce, got %v", err)
	}
	if env.engine.MetricsSnapshot().Counters[MetricRateLimitDegraded] != 2 {
		t.Fatal("degraded decisions not counted")
	}
}

func TestCheckRateLimitWithoutFallback(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimit.DisableFallback = true
	})
	env.mr.Close()

	_, err := env.engine.CheckRateLimit(context.Background(), RouteLogin, "")
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestCheckRateLimitDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimit.Enabled = false
	})

	for i := 0; i < 200; i++ {
		if _, err := env.engine.CheckRateLimit(context.Background(), RouteLogin, ""); err != nil {
			t.Fatalf("disabled limiter denied request: %v", err)
		}
	}
}

func TestResetRateLimit(t *testing.T) {
	env := newTestEnv(t, withLoginPolicy(1))
	ctx := WithClientIP(context.Background(), "198.51.100.5")

	_, _ = env.engine.CheckRateLimit(ctx, RouteLogin, "")
	if _, err := env.engine.CheckRateLimit(ctx, RouteLogin, ""); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected limit, got %v", err)
	}
	if err := env.engine.ResetRateLimit(ctx, rate.Identity("", "198.51.100.5"), RouteLogin); err != nil {
		t.Fatalf("ResetRateLimit failed: %v", err)
	}
	if _, err := env.engine.CheckRateLimit(ctx, RouteLogin, ""); err != nil {
		t.Fatalf("counter should be cleared: %v", err)
	}
}
