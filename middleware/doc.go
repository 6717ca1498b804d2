// Package middleware adapts an authcore.Engine to net/http.
//
//   - [ClientInfo] copies the client IP and User-Agent into the request
//     context for session metadata, audit and anonymous rate limiting.
//   - [RateLimit] charges one request against a route budget and sets the
//     X-RateLimit-* headers.
//   - [RequireAuth] accepts any valid bearer token.
//   - [RequireSession] also requires the token's session to be active, so
//     logged-out or replaced tokens are rejected.
//
// Every decision is delegated to the Engine; this package only translates
// results into HTTP status codes and headers.
package middleware
