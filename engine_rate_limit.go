package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/authcore/internal/rate"
)

// CheckRateLimit counts one request on route. The identity is the subject
// of bearer when it verifies, otherwise the client IP from ctx. A denied
// request returns the decision together with ErrTooManyRequests.
//
// With rate limiting disabled every request is allowed.
func (e *Engine) CheckRateLimit(ctx context.Context, route, bearer string) (rate.Decision, error) {
	if e == nil {
		return rate.Decision{}, ErrEngineNotReady
	}
	if e.limiter == nil {
		return rate.Decision{Allowed: true}, nil
	}
	route = strings.TrimSpace(route)
	if route == "" {
		return rate.Decision{}, fmt.Errorf("%w: route is required", ErrInvalidInput)
	}

	subjectID := ""
	if bearer != "" {
		if claims, err := e.verifyToken(bearer); err == nil {
			subjectID = claims.SubjectID
		}
	}
	identity := rate.Identity(subjectID, ClientIPFromContext(ctx))

	ctx, span := e.startSpan(ctx, "authcore.CheckRateLimit", attribute.String("authcore.route", route))
	d, err := e.limiter.CheckRoute(ctx, identity, route)
	if err != nil {
		if errors.Is(err, rate.ErrRedisUnavailable) {
			err = fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		} else {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		endSpan(span, err)
		return rate.Decision{}, err
	}
	span.SetAttributes(
		attribute.Int("authcore.rate.remaining", d.Remaining),
		attribute.Bool("authcore.rate.degraded", d.Degraded),
	)

	if d.Degraded {
		e.metricInc(MetricRateLimitDegraded)
	}
	if !d.Allowed {
		e.emitRateLimit(ctx, route, identity)
		endSpan(span, ErrTooManyRequests)
		return d, ErrTooManyRequests
	}

	endSpan(span, nil)
	return d, nil
}

// ResetRateLimit clears the counter of identity on route.
func (e *Engine) ResetRateLimit(ctx context.Context, identity, route string) error {
	if e == nil || e.limiter == nil {
		return nil
	}
	if err := e.limiter.Reset(ctx, identity, route); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// RetryAfter is the whole number of seconds a denied caller should wait,
// at least 1.
func RetryAfter(d rate.Decision, now time.Time) int {
	secs := int((d.RetryAfter(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimitDegraded reports whether the last rate-limit check fell back to
// in-process counters.
func (e *Engine) RateLimitDegraded() bool {
	if e == nil || e.limiter == nil {
		return false
	}
	return e.limiter.Degraded()
}
