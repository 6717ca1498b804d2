// Package rate implements the fixed-window request limiter used in front of
// the credential endpoints.
//
// # Window semantics
//
// Each (identity, route) pair owns one counter at "<prefix>:<identity>:<route>".
// A single Lua script increments it, arms the window expiry on the first hit
// (or when the key has lost its TTL) and returns the count with the remaining
// TTL. A request is denied once the count exceeds the limit; denied requests
// still count.
//
// # Degraded mode
//
// When Redis is unreachable or no client is configured the limiter keeps
// counting in process with the same semantics and marks the decision as
// degraded. Counters are then local to the instance.
//
// # What this package must NOT do
//
//   - Decide which identity a request belongs to beyond [Identity].
//   - Be imported outside the authcore module.
package rate
