// Package session enforces at most one active session per subject.
//
// A session is a persisted row bound to a bearer token minted by the token
// codec. [Manager.CreateOrReuse] hands back the token of a live session when
// one exists and otherwise mints a token and replaces every row of the
// subject with the new one. Concurrent calls for the same subject within a
// process are collapsed so they observe the same token.
//
// # Architecture boundaries
//
// This package owns session lifecycle decisions. It does NOT verify bearer
// tokens, hash passwords or apply rate limits; those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authcore (no upward imports).
//   - Keep more than one row per subject after a successful create.
package session
