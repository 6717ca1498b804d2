package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
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

const tracerName = "github.com/MrEthical07/authcore"

// Builder assembles an Engine. Configure it during startup, call Build once
// and share the resulting Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  storage.Store
	sender notify.Sender
	logger *zap.Logger

	auditSink      AuditSink
	tracerProvider trace.TracerProvider

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the key-value store used for reset sessions and rate
// counters. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the persistence backend. It is required.
func (b *Builder) WithStore(store storage.Store) *Builder {
	b.store = store
	return b
}

// WithSender sets the code delivery channel. Without one, codes are logged
// with the code redacted.
func (b *Builder) WithSender(sender notify.Sender) *Builder {
	b.sender = sender
	return b
}

// WithLogger sets the base logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink behind the audit dispatcher. It has no effect
// unless Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and constructs the Engine. A Builder can
// only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("authcore")

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.Argon2)
	if err != nil {
		return nil, err
	}

	sender := b.sender
	if sender == nil {
		sender = notify.LogSender{Logger: logger.Named("notify")}
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.New(b.redis, rate.Config{
			Prefix:          cfg.RateLimit.RedisPrefix,
			Policies:        cfg.RateLimit.Policies,
			Default:         cfg.RateLimit.Default,
			DisableFallback: cfg.RateLimit.DisableFallback,
		}, logger.Named("rate"))
	}

	auditSink := b.auditSink
	if auditSink == nil {
		auditSink = internalaudit.NewZapSink(logger)
	}

	e := &Engine{
		config:   cfg,
		store:    b.store,
		redis:    b.redis,
		tokens:   tokens,
		sessions: session.NewManager(b.store, tokens, cfg.Session.TTL),
		codes:    stores.NewVerificationCodeStore(b.store, cfg.Verification.CodeTTL),
		resets:   stores.NewResetSessionStore(b.redis, cfg.Reset.RedisPrefix, cfg.Reset.TTL),
		limiter:  limiter,
		hasher:   hasher,
		sender:   sender,
		logger:   logger,
		tracer:   tp.Tracer(tracerName),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true
	return e, nil
}
