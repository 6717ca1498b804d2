package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("storage: duplicate")
)

// SubjectRepository stores subjects. Email is unique.
type SubjectRepository interface {
	GetSubjectByID(ctx context.Context, id string) (*Subject, error)
	GetSubjectByEmail(ctx context.Context, email string) (*Subject, error)
	// CreateSubjectWithAccount inserts a subject and its first account
	// together; neither row exists if either insert fails.
	CreateSubjectWithAccount(ctx context.Context, subject *Subject, account *Account) error
	MarkEmailVerified(ctx context.Context, subjectID string, at time.Time) error
}

// AccountRepository stores authentication methods.
type AccountRepository interface {
	GetAccount(ctx context.Context, subjectID string, accountType AccountType) (*Account, error)
	UpdatePasswordHash(ctx context.Context, accountID, hash string, at time.Time) error
}

// SessionRepository stores sessions. Token is unique.
type SessionRepository interface {
	// FindActiveSession returns a session of the subject whose expiry is
	// after now.
	FindActiveSession(ctx context.Context, subjectID string, now time.Time) (*Session, error)
	// ReplaceSessions deletes every session of sess.SubjectID and inserts
	// sess.
	ReplaceSessions(ctx context.Context, sess *Session) error
	// DeleteSessionByToken is idempotent.
	DeleteSessionByToken(ctx context.Context, token string) error
	DeleteSessionsBySubject(ctx context.Context, subjectID string) error
}

// VerificationRepository stores verification codes.
type VerificationRepository interface {
	// ReplaceVerificationCodes deletes every code of code.SubjectID,
	// regardless of purpose, and inserts code.
	ReplaceVerificationCodes(ctx context.Context, code *VerificationCode) error
	FindVerificationCode(ctx context.Context, subjectID, code string, purpose Purpose) (*VerificationCode, error)
	// DeleteVerificationCode reports whether this call removed the row.
	DeleteVerificationCode(ctx context.Context, id string) (bool, error)
}

// Store is the full persistence contract.
type Store interface {
	SubjectRepository
	AccountRepository
	SessionRepository
	VerificationRepository
}
