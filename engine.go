package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/storage"
)

// Engine runs the credential flows. It is safe for concurrent use and is
// created once through Builder.
type Engine struct {
	config   Config
	store    storage.Store
	redis    redis.UniversalClient
	tokens   *jwt.Manager
	sessions *session.Manager
	codes    *stores.VerificationCodeStore
	resets   *stores.ResetSessionStore
	limiter  *rate.Limiter
	hasher   *password.Hasher
	sender   notify.Sender
	logger   *zap.Logger
	tracer   trace.Tracer
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
}

// Close drains the audit dispatcher. The Redis client and store belong to
// the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the in-process counters
// and latency histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ping checks the key-value store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.redis == nil {
		return ErrEngineNotReady
	}
	if err := e.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate verifies token and returns its claims. The token exp claim
// is authoritative; the session row is not consulted.
func (e *Engine) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	_, span := e.startSpan(ctx, "authcore.Authenticate")

	start := time.Now()
	claims, err := e.verifyToken(token)
	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
	} else {
		span.SetAttributes(attribute.String("authcore.subject_id", claims.SubjectID))
	}

	endSpan(span, err)
	return claims, err
}

func (e *Engine) verifyToken(token string) (*jwt.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	claims, err := e.tokens.Verify(token)
	if err != nil {
		return nil, mapTokenErr(err)
	}
	return claims, nil
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, auditErrorCode(err).String())
	}
	span.End()
}

func (c AuditErrorCode) String() string { return string(c) }

func sessionMetadata(ctx context.Context) session.Metadata {
	return session.Metadata{
		IPAddress: ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > 320 {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (e *Engine) checkPasswordPolicy(pw string) error {
	if strings.TrimSpace(pw) == "" {
		return ErrPasswordPolicy
	}
	if len(pw) < e.config.Password.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	if len(pw) > e.config.Password.MaxLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrPasswordPolicy, e.config.Password.MaxLength)
	}
	return nil
}

/*
====================================
ERROR MAPPING
====================================
*/

func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

func mapStoreErr(err error, notFound error) error {
	if notFound != nil && errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func mapSessionErr(err error) error {
	switch {
	case errors.Is(err, session.ErrSubjectNotFound):
		return ErrSubjectNotFound
	case errors.Is(err, session.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
}

func mapCodeErr(err error) error {
	switch {
	case errors.Is(err, stores.ErrCodeNotFound):
		return ErrCodeInvalid
	case errors.Is(err, stores.ErrCodeExpired):
		return ErrCodeExpired
	case errors.Is(err, stores.ErrCodeInvalidInput):
		return ErrCodeRequired
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func mapResetErr(err error) error {
	if errors.Is(err, stores.ErrResetSessionNotFound) {
		return ErrResetSessionAbsent
	}
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}
