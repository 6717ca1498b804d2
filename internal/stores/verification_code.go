package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/storage"
)

const (
	// DefaultCodeTTL is the lifetime of an issued verification code.
	DefaultCodeTTL = 30 * time.Minute
	// CodeDigits is the fixed width of a verification code.
	CodeDigits = 6
)

var (
	// ErrCodeNotFound covers a wrong code, a wrong purpose and a code that
	// was already redeemed.
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrCodeExpired is returned once for an expired code, which is deleted.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrCodeInvalidInput rejects an empty subject or code, or an unknown
	// purpose.
	ErrCodeInvalidInput = errors.New("verification code input invalid")
	// ErrCodeStoreUnavailable wraps failures of the backing repository.
	ErrCodeStoreUnavailable = errors.New("verification code store unavailable")
)

// VerificationCodeStore issues and redeems one-time numeric codes.
type VerificationCodeStore struct {
	repo storage.VerificationRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewVerificationCodeStore returns a store over repo. A non-positive ttl
// selects [DefaultCodeTTL].
func NewVerificationCodeStore(repo storage.VerificationRepository, ttl time.Duration) *VerificationCodeStore {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &VerificationCodeStore{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Issue generates a fresh code for subjectID and purpose. Every code the
// subject held before, of any purpose, is removed.
func (s *VerificationCodeStore) Issue(ctx context.Context, subjectID string, purpose storage.Purpose) (string, error) {
	if subjectID == "" || !purpose.Valid() {
		return "", ErrCodeInvalidInput
	}

	code, err := internal.NewOTP(CodeDigits)
	if err != nil {
		return "", err
	}

	record := &storage.VerificationCode{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.repo.ReplaceVerificationCodes(ctx, record); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeStoreUnavailable, err)
	}

	return code, nil
}

// Redeem consumes the code. It returns [ErrCodeNotFound] when no matching
// code exists and [ErrCodeExpired] when it exists but has expired; an
// expired code is deleted.
func (s *VerificationCodeStore) Redeem(ctx context.Context, subjectID, code string, purpose storage.Purpose) error {
	if subjectID == "" || code == "" || !purpose.Valid() {
		return ErrCodeInvalidInput
	}

	record, err := s.repo.FindVerificationCode(ctx, subjectID, code, purpose)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("%w: %v", ErrCodeStoreUnavailable, err)
	}

	deleted, err := s.repo.DeleteVerificationCode(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodeStoreUnavailable, err)
	}

	if s.now().After(record.ExpiresAt) {
		return ErrCodeExpired
	}
	if !deleted {
		// A concurrent redeem removed the row first.
		return ErrCodeNotFound
	}

	return nil
}
