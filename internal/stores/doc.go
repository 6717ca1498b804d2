// Package stores holds the short-lived credential records used by the
// authentication flows: one-time verification codes and password reset
// sessions.
//
// # Design
//
// Verification codes live in the relational store behind
// [storage.VerificationRepository]. Issuing a code replaces every earlier
// code of the subject; redeeming deletes the row with a compare-and-delete
// so a code succeeds at most once even under concurrent redemption.
//
// Reset sessions live in Redis as a pair of keys with a shared TTL, one
// from the opaque handle to the email and one back. Open and Consume are
// Lua scripts, so each runs atomically on the server.
//
// # What this package must NOT do
//
//   - Import authcore or make authentication decisions.
//   - Log or expose plaintext codes.
package stores
