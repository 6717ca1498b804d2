package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/storage"
)

// RegisterInput is the payload of Engine.Register.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// VerifyResult describes what a redeemed code unlocked.
type VerifyResult struct {
	Purpose storage.Purpose
	// SubjectID is set for every successful verification.
	SubjectID string
	// Token is set when an email code logged the subject in.
	Token string
	// ResetHandle is set for password codes. The reset session is also
	// reachable by email, so callers may ignore it.
	ResetHandle string
}

// SessionInfo is the introspection view returned by Engine.GetSession.
type SessionInfo struct {
	SubjectID     string
	Email         string
	Name          string
	Role          string
	EmailVerified bool
	SessionID     string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	IPAddress     string
	UserAgent     string
}

// RateDecision is the outcome of CheckRateLimit.
type RateDecision = rate.Decision

// RatePolicy is a per-route request budget.
type RatePolicy = rate.Policy

// Route names understood by the default rate-limit policies.
const (
	RouteSignup         = rate.RouteSignup
	RouteLogin          = rate.RouteLogin
	RouteVerify         = rate.RouteVerify
	RouteForgotPassword = rate.RouteForgotPassword
	RouteResetPassword  = rate.RouteResetPassword
)
