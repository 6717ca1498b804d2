// Package jwt signs and verifies the compact bearer tokens handed out by
// authcore sessions. Tokens are HS256-signed with a process-wide secret and
// carry the subject id and role of the authenticated user.
//
// Verification failures are always one of [ErrMalformed], [ErrExpired] or
// [ErrInvalidSignature]; callers never see a partially trusted payload.
package jwt
