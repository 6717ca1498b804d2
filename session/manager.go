package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/storage"
)

// DefaultTTL is the lifetime of a session and of the token bound to it.
const DefaultTTL = 24 * time.Hour

var (
	// ErrSubjectNotFound is returned when the subject has no record.
	ErrSubjectNotFound = errors.New("session subject not found")
	// ErrSessionNotFound is returned by Lookup when no active session exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Metadata describes the client that opened a session.
type Metadata struct {
	IPAddress string
	UserAgent string
}

// TokenIssuer mints bearer tokens. [jwt.Manager] satisfies it.
type TokenIssuer interface {
	Issue(claims jwt.Claims, ttl time.Duration) (string, error)
}

// Store is the persistence the manager needs.
type Store interface {
	GetSubjectByID(ctx context.Context, id string) (*storage.Subject, error)
	storage.SessionRepository
}

// Manager creates, reuses and revokes sessions.
type Manager struct {
	store  Store
	tokens TokenIssuer
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group
}

// NewManager returns a Manager. A non-positive ttl selects [DefaultTTL].
func NewManager(store Store, tokens TokenIssuer, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateOrReuse returns the token of the subject's active session, or
// creates a new session and returns its token. Creating a session removes
// every other session of the subject.
//
// Concurrent calls for one subject share a single store round-trip. The
// shared work is detached from any one caller's cancellation; a caller whose
// ctx ends stops waiting and gets ctx.Err() while the others still receive
// the token.
func (m *Manager) CreateOrReuse(ctx context.Context, subjectID string, meta Metadata) (string, error) {
	if subjectID == "" {
		return "", ErrSubjectNotFound
	}

	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(subjectID, func() (interface{}, error) {
		return m.createOrReuse(shared, subjectID, meta)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) createOrReuse(ctx context.Context, subjectID string, meta Metadata) (string, error) {
	now := m.now()

	existing, err := m.store.FindActiveSession(ctx, subjectID, now)
	if err == nil {
		return existing.Token, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	subject, err := m.store.GetSubjectByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrSubjectNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token, err := m.tokens.Issue(jwt.Claims{SubjectID: subject.ID, Role: subject.Role}, m.ttl)
	if err != nil {
		return "", err
	}

	// Token expiry has second precision; the row must not outlive it.
	sess := &storage.Session{
		ID:        uuid.NewString(),
		Token:     token,
		SubjectID: subject.ID,
		ExpiresAt: now.Add(m.ttl).Truncate(time.Second),
		CreatedAt: now,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := m.store.ReplaceSessions(ctx, sess); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return token, nil
}

// Lookup returns the active session of subjectID.
func (m *Manager) Lookup(ctx context.Context, subjectID string) (*storage.Session, error) {
	if subjectID == "" {
		return nil, ErrSessionNotFound
	}

	sess, err := m.store.FindActiveSession(ctx, subjectID, m.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sess, nil
}

// Invalidate deletes the session bound to token. Unknown tokens are not an
// error.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSessionByToken(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// InvalidateAll deletes every session of subjectID.
func (m *Manager) InvalidateAll(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}
	if err := m.store.DeleteSessionsBySubject(ctx, subjectID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
