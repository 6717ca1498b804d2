package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/authcore"
)

// serverConfig is read from the process environment.
type serverConfig struct {
	HTTPAddr        string        `env:"AUTHCORE_HTTP_ADDR"        envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"AUTHCORE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustProxy      bool          `env:"AUTHCORE_TRUST_PROXY"`

	JWTSecret   string        `env:"AUTHCORE_JWT_SECRET,required,unset"`
	JWTIssuer   string        `env:"AUTHCORE_JWT_ISSUER"   envDefault:"authcore"`
	JWTAudience string        `env:"AUTHCORE_JWT_AUDIENCE"`
	SessionTTL  time.Duration `env:"AUTHCORE_SESSION_TTL"  envDefault:"24h"`

	RedisURL    string `env:"AUTHCORE_REDIS_URL"    envDefault:"redis://localhost:6379/0"`
	DatabaseURL string `env:"AUTHCORE_DATABASE_URL"`

	RequireVerifiedEmail bool `env:"AUTHCORE_REQUIRE_VERIFIED_EMAIL"`
	RevealCodes          bool `env:"AUTHCORE_REVEAL_CODES"`
	AuditEnabled         bool `env:"AUTHCORE_AUDIT_ENABLED"`

	LogLevel     string `env:"AUTHCORE_LOG_LEVEL"     envDefault:"info"`
	LogFormat    string `env:"AUTHCORE_LOG_FORMAT"    envDefault:"json"`
	OTelEndpoint string `env:"AUTHCORE_OTEL_ENDPOINT"`

	OTelMetricsInterval time.Duration `env:"AUTHCORE_OTEL_METRICS_INTERVAL" envDefault:"30s"`
}

// loadConfig parses environ, or the process environment when environ is nil.
func loadConfig(environ map[string]string) (serverConfig, error) {
	var cfg serverConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// engineConfig overlays cfg on the library defaults and validates the result.
func (cfg serverConfig) engineConfig() (authcore.Config, error) {
	c := authcore.DefaultConfig()
	c.JWT.Secret = []byte(cfg.JWTSecret)
	c.JWT.Issuer = cfg.JWTIssuer
	c.JWT.Audience = cfg.JWTAudience
	c.Session.TTL = cfg.SessionTTL
	c.Account.RequireVerifiedEmail = cfg.RequireVerifiedEmail
	c.Audit.Enabled = cfg.AuditEnabled

	if err := c.Validate(); err != nil {
		return authcore.Config{}, err
	}
	return c, nil
}
