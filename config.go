package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/storage"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override fields; Build validates the result.
type Config struct {
	JWT          JWTConfig
	Session      SessionConfig
	Verification VerificationConfig
	Reset        ResetConfig
	RateLimit    RateLimitConfig
	Password     PasswordConfig
	Account      AccountConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN & SESSION CONFIG
====================================
*/

// JWTConfig configures the HS256 token codec.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// SessionConfig configures the session manager. TTL applies to both the
// session row and the token exp claim.
type SessionConfig struct {
	TTL time.Duration
}

/*
====================================
CODES & RESET CONFIG
====================================
*/

// VerificationConfig configures one-time codes.
type VerificationConfig struct {
	CodeTTL time.Duration
}

// ResetConfig configures the ephemeral reset sessions opened after a
// password code is verified.
type ResetConfig struct {
	TTL         time.Duration
	RedisPrefix string
	// RevokeSessions deletes every session of the subject after a reset.
	RevokeSessions bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures per-route request budgets.
type RateLimitConfig struct {
	Enabled     bool
	RedisPrefix string
	Policies    map[string]rate.Policy
	Default     rate.Policy
	// DisableFallback fails requests with ErrDependencyUnavailable instead of
	// counting in process when Redis is down.
	DisableFallback bool
}

/*
====================================
ACCOUNT & PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the password policy and hashing cost.
type PasswordConfig struct {
	MinLength int
	MaxLength int
	Argon2    password.Config
	// UpgradeOnLogin re-hashes bcrypt or outdated Argon2 hashes after a
	// successful login.
	UpgradeOnLogin bool
}

// AccountConfig controls registration and login rules.
type AccountConfig struct {
	DefaultRole          string
	RequireVerifiedEmail bool
	// SessionOnEmailVerify logs the subject in when an email code is
	// verified.
	SessionOnEmailVerify bool
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the defaults. JWT.Secret is left empty and must be
// provided.
func DefaultConfig() Config {
	rateDefault := rate.DefaultPolicy()
	return Config{
		JWT: JWTConfig{
			Issuer: "authcore",
			Leeway: 30 * time.Second,
		},
		Session: SessionConfig{
			TTL: session.DefaultTTL,
		},
		Verification: VerificationConfig{
			CodeTTL: stores.DefaultCodeTTL,
		},
		Reset: ResetConfig{
			TTL:            stores.DefaultResetTTL,
			RedisPrefix:    "ar",
			RevokeSessions: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			RedisPrefix: "arl",
			Policies:    rate.DefaultPolicies(),
			Default:     rateDefault,
		},
		Password: PasswordConfig{
			MinLength:      8,
			MaxLength:      256,
			Argon2:         password.DefaultConfig(),
			UpgradeOnLogin: true,
		},
		Account: AccountConfig{
			DefaultRole: storage.DefaultRole,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.JWT.Secret) > 0 {
		out.JWT.Secret = append([]byte(nil), cfg.JWT.Secret...)
	}
	if cfg.RateLimit.Policies != nil {
		out.RateLimit.Policies = make(map[string]rate.Policy, len(cfg.RateLimit.Policies))
		for k, v := range cfg.RateLimit.Policies {
			out.RateLimit.Policies[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretLength)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Verification.CodeTTL <= 0 {
		return errors.New("Verification CodeTTL must be > 0")
	}
	if c.Reset.TTL <= 0 {
		return errors.New("Reset TTL must be > 0")
	}
	if c.Reset.RedisPrefix == "" {
		return errors.New("Reset RedisPrefix must not be empty")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RedisPrefix == "" {
			return errors.New("RateLimit RedisPrefix must not be empty")
		}
		if c.RateLimit.RedisPrefix == c.Reset.RedisPrefix {
			return errors.New("RateLimit and Reset must use distinct Redis prefixes")
		}
		for route, p := range c.RateLimit.Policies {
			if p.Limit <= 0 || p.Window <= 0 {
				return fmt.Errorf("RateLimit policy %q must have Limit > 0 and Window > 0", route)
			}
		}
		if d := c.RateLimit.Default; d != (rate.Policy{}) && (d.Limit <= 0 || d.Window <= 0) {
			return errors.New("RateLimit Default must have Limit > 0 and Window > 0")
		}
	}

	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if err := c.Password.Argon2.Validate(); err != nil {
		return err
	}

	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
