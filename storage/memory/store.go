// Package memory is an in-process implementation of [storage.Store].
//
// It is intended for tests and local development. All operations are
// serialised by a single mutex, which makes the Replace* operations atomic.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/storage"
)

// Store keeps every row in maps guarded by one mutex. The zero value is not
// usable; call [New].
type Store struct {
	mu sync.Mutex

	subjects map[string]storage.Subject
	emails   map[string]string // email -> subject id
	accounts map[string]storage.Account
	sessions map[string]storage.Session // token -> row
	codes    map[string]storage.VerificationCode
}

var _ storage.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		subjects: make(map[string]storage.Subject),
		emails:   make(map[string]string),
		accounts: make(map[string]storage.Account),
		sessions: make(map[string]storage.Session),
		codes:    make(map[string]storage.VerificationCode),
	}
}

func (s *Store) GetSubjectByID(_ context.Context, id string) (*storage.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subjects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &sub, nil
}

func (s *Store) GetSubjectByEmail(_ context.Context, email string) (*storage.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	sub := s.subjects[id]
	return &sub, nil
}

func (s *Store) CreateSubjectWithAccount(_ context.Context, subject *storage.Subject, account *storage.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[subject.ID]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.emails[subject.Email]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.accounts[account.ID]; ok {
		return storage.ErrDuplicate
	}

	s.subjects[subject.ID] = *subject
	s.emails[subject.Email] = subject.ID
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) MarkEmailVerified(_ context.Context, subjectID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subjects[subjectID]
	if !ok {
		return storage.ErrNotFound
	}
	sub.EmailVerified = true
	sub.UpdatedAt = at
	s.subjects[subjectID] = sub
	return nil
}

func (s *Store) GetAccount(_ context.Context, subjectID string, accountType storage.AccountType) (*storage.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.SubjectID == subjectID && acc.Type == accountType {
			acc := acc
			return &acc, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdatePasswordHash(_ context.Context, accountID, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	acc.PasswordHash = hash
	acc.UpdatedAt = at
	s.accounts[accountID] = acc
	return nil
}

func (s *Store) FindActiveSession(_ context.Context, subjectID string, now time.Time) (*storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.SubjectID == subjectID && sess.ExpiresAt.After(now) {
			sess := sess
			return &sess, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ReplaceSessions(_ context.Context, sess *storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sess.Token]; ok && existing.SubjectID != sess.SubjectID {
		return storage.ErrDuplicate
	}

	s.deleteSessionsLocked(sess.SubjectID)
	s.sessions[sess.Token] = *sess
	return nil
}

func (s *Store) DeleteSessionByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteSessionsBySubject(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteSessionsLocked(subjectID)
	return nil
}

func (s *Store) deleteSessionsLocked(subjectID string) {
	for token, sess := range s.sessions {
		if sess.SubjectID == subjectID {
			delete(s.sessions, token)
		}
	}
}

func (s *Store) ReplaceVerificationCodes(_ context.Context, code *storage.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.codes {
		if c.SubjectID == code.SubjectID {
			delete(s.codes, id)
		}
	}
	s.codes[code.ID] = *code
	return nil
}

func (s *Store) FindVerificationCode(_ context.Context, subjectID, code string, purpose storage.Purpose) (*storage.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.codes {
		if c.SubjectID == subjectID && c.Code == code && c.Purpose == purpose {
			c := c
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) DeleteVerificationCode(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[id]; !ok {
		return false, nil
	}
	delete(s.codes, id)
	return true, nil
}

// SessionCount returns the number of sessions held for subjectID.
func (s *Store) SessionCount(subjectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.sessions {
		if sess.SubjectID == subjectID {
			n++
		}
	}
	return n
}

// CodeCount returns the number of verification codes held for subjectID.
func (s *Store) CodeCount(subjectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.codes {
		if c.SubjectID == subjectID {
			n++
		}
	}
	return n
}
