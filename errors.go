package authcore

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by an Engine operation matches exactly
// one of them with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrExpired               = errors.New("expired")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrRateLimited           = errors.New("rate limited")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

var (
	ErrInvalidEmail       = fmt.Errorf("%w: email is required", ErrInvalidInput)
	ErrPasswordPolicy     = fmt.Errorf("%w: password does not meet policy", ErrInvalidInput)
	ErrInvalidPurpose     = fmt.Errorf("%w: purpose must be email or password", ErrInvalidInput)
	ErrCodeRequired       = fmt.Errorf("%w: code is required", ErrInvalidInput)
	ErrTokenRequired      = fmt.Errorf("%w: token is required", ErrInvalidInput)
	ErrAccountExists      = fmt.Errorf("%w: account already exists", ErrInvalidInput)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrEmailNotVerified   = fmt.Errorf("%w: email not verified", ErrUnauthorized)
	ErrTokenInvalid       = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrExpired)
	ErrCodeInvalid        = fmt.Errorf("%w: verification code invalid", ErrNotFound)
	ErrCodeExpired        = fmt.Errorf("%w: verification code expired", ErrExpired)
	ErrResetSessionAbsent = fmt.Errorf("%w: no active reset session", ErrNotFound)
	ErrSubjectNotFound    = fmt.Errorf("%w: subject not found", ErrNotFound)
	ErrAccountNotFound    = fmt.Errorf("%w: credentials account not found", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("%w: session not found", ErrNotFound)
	ErrTooManyRequests    = fmt.Errorf("%w: too many requests", ErrRateLimited)
	ErrStoreUnavailable   = fmt.Errorf("%w: store unavailable", ErrDependencyUnavailable)
	ErrCacheUnavailable   = fmt.Errorf("%w: key-value store unavailable", ErrDependencyUnavailable)
	ErrNotifyFailed       = fmt.Errorf("%w: notification failed", ErrDependencyUnavailable)
	ErrEngineNotReady     = fmt.Errorf("%w: engine not initialized", ErrDependencyUnavailable)
)

// Public messages. They never reveal whether an account exists.
const (
	MsgInvalidInput      = "Invalid request"
	MsgInvalidCreds      = "Invalid credentials"
	MsgUnauthorized      = "Invalid or expired token"
	MsgAccountExists     = "User already exists"
	MsgEmailNotVerified  = "Email not verified"
	MsgCodeInvalid       = "Invalid or expired code"
	MsgResetSession      = "No active reset session found. Please request a new one."
	MsgNotFound          = "Not found"
	MsgRateLimited       = "Too many requests, please try again later."
	MsgUnavailable       = "Service temporarily unavailable"
	MsgForgotPasswordAck = "If an account exists, a code was sent"
	MsgInternal          = "Internal error"
)

// PublicMessage returns a stable message for err that is safe to show to
// the caller.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountExists):
		return MsgAccountExists
	case errors.Is(err, ErrPasswordPolicy):
		return err.Error()
	case errors.Is(err, ErrInvalidInput):
		return MsgInvalidInput
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrSubjectNotFound), errors.Is(err, ErrAccountNotFound):
		return MsgInvalidCreds
	case errors.Is(err, ErrEmailNotVerified):
		return MsgEmailNotVerified
	case errors.Is(err, ErrCodeInvalid), errors.Is(err, ErrCodeExpired):
		return MsgCodeInvalid
	case errors.Is(err, ErrResetSessionAbsent):
		return MsgResetSession
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenExpired):
		return MsgUnauthorized
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
		return MsgNotFound
	case errors.Is(err, ErrRateLimited):
		return MsgRateLimited
	case errors.Is(err, ErrDependencyUnavailable):
		return MsgUnavailable
	default:
		return MsgInternal
	}
}

// Kind returns the kind sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidInput,
		ErrNotFound,
		ErrExpired,
		ErrUnauthorized,
		ErrRateLimited,
		ErrDependencyUnavailable,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
