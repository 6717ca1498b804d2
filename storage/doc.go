// Package storage defines the persistence contract consumed by authcore:
// subjects, credential accounts, sessions and verification codes.
//
// Implementations live in sub-packages ([memory] for tests and development,
// [postgres] for production). Every implementation must return [ErrNotFound]
// for absent rows and [ErrDuplicate] for unique-index violations so callers
// never depend on driver errors.
//
// The Replace* operations are the delete-then-insert sequences used by the
// session manager and the verification code store. Implementations run them
// atomically when the backend allows it.
package storage
