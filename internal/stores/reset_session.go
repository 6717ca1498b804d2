package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/internal"
)

// DefaultResetTTL is the lifetime of a reset session.
const DefaultResetTTL = 10 * time.Minute

var (
	// ErrResetSessionNotFound means no live reset session exists for the
	// email, including one that was consumed or replaced.
	ErrResetSessionNotFound = errors.New("reset session not found")
	// ErrResetStoreUnavailable wraps Redis failures.
	ErrResetStoreUnavailable = errors.New("reset store unavailable")
)

// openResetLua writes both directions of a reset session and revokes the
// handle previously bound to the same email.
// KEYS[1] = email key
// KEYS[2] = handle key
// ARGV[1] = email
// ARGV[2] = handle
// ARGV[3] = ttl in milliseconds
// ARGV[4] = handle key prefix
var openResetLua = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old then
  redis.call('DEL', ARGV[4] .. old)
end
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// consumeResetLua deletes the handle and, when it still points back at the
// same handle, the email key.
// KEYS[1] = handle key
// ARGV[1] = email key prefix
// ARGV[2] = handle
var consumeResetLua = redis.NewScript(`
local email = redis.call('GET', KEYS[1])
if not email then
  return false
end
redis.call('DEL', KEYS[1])
local emailKey = ARGV[1] .. email
if redis.call('GET', emailKey) == ARGV[2] then
  redis.call('DEL', emailKey)
end
return email
`)

// ResetSessionStore keeps short-lived password reset sessions in Redis.
type ResetSessionStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewResetSessionStore returns a store using keys "<prefix>h:<handle>" and
// "<prefix>e:<email>". Empty prefix selects "ar"; non-positive ttl selects
// [DefaultResetTTL].
func NewResetSessionStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *ResetSessionStore {
	if prefix == "" {
		prefix = "ar"
	}
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetSessionStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *ResetSessionStore) handlePrefix() string { return s.prefix + "h:" }
func (s *ResetSessionStore) emailPrefix() string  { return s.prefix + "e:" }

// Open starts a reset session for email and returns its handle.
func (s *ResetSessionStore) Open(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrResetSessionNotFound
	}
	if s.redis == nil {
		return "", fmt.Errorf("%w: no redis client", ErrResetStoreUnavailable)
	}

	h, err := internal.NewHandle()
	if err != nil {
		return "", err
	}
	handle := h.String()

	err = openResetLua.Run(ctx, s.redis,
		[]string{s.emailPrefix() + email, s.handlePrefix() + handle},
		email,
		handle,
		s.ttl.Milliseconds(),
		s.handlePrefix(),
	).Err()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResetStoreUnavailable, err)
	}

	return handle, nil
}

// Lookup returns the live handle for email.
func (s *ResetSessionStore) Lookup(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrResetSessionNotFound
	}
	if s.redis == nil {
		return "", fmt.Errorf("%w: no redis client", ErrResetStoreUnavailable)
	}

	handle, err := s.redis.Get(ctx, s.emailPrefix()+email).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrResetSessionNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrResetStoreUnavailable, err)
	}
	return handle, nil
}

// Consume ends the session identified by handle and returns its email.
// Only the first of several concurrent calls succeeds.
func (s *ResetSessionStore) Consume(ctx context.Context, handle string) (string, error) {
	if _, err := internal.ParseHandle(handle); err != nil {
		return "", ErrResetSessionNotFound
	}
	if s.redis == nil {
		return "", fmt.Errorf("%w: no redis client", ErrResetStoreUnavailable)
	}

	email, err := consumeResetLua.Run(ctx, s.redis,
		[]string{s.handlePrefix() + handle},
		s.emailPrefix(),
		handle,
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrResetSessionNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrResetStoreUnavailable, err)
	}
	return email, nil
}
