package rate

import "errors"

var (
	// ErrRateLimited is returned by callers that turn a denied [Decision]
	// into an error.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is returned when Redis fails and the in-process
	// fallback is disabled.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidPolicy is returned for a non-positive limit or window.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
