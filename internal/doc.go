// Package internal contains helpers private to authcore: secure random
// generation of verification codes and opaque handles.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - httpapi: JSON HTTP API served by cmd/authcore-server
//   - logging: zap logger construction
//   - rate: fixed-window rate limiter with in-memory fallback
//   - stores: verification code and reset session stores
//   - telemetry: OTLP tracer provider setup
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
