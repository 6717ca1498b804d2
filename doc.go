// Package authcore manages credentials and sessions for an authentication
// service: registration, login with a single active session per subject,
// one-time verification codes, password reset through short-lived reset
// sessions, and per-route rate limiting.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (SessionInfo, VerifyResult, MetricsSnapshot). Code stores,
// reset sessions, rate counters and audit dispatch live under internal/.
// Persistence is reached through the storage contracts; Redis holds reset
// sessions and rate counters.
//
// # Errors
//
// Every error returned by an Engine method matches exactly one of
// [ErrInvalidInput], [ErrNotFound], [ErrExpired], [ErrUnauthorized],
// [ErrRateLimited] or [ErrDependencyUnavailable] with errors.Is.
// [PublicMessage] maps any of them to a message safe to return to clients.
package authcore
