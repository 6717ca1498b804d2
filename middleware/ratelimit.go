package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
)

// RateLimit charges each request against the budget of route. Mount it after
// ClientInfo so anonymous callers are keyed by IP. X-RateLimit-Reset carries
// the window end in Unix milliseconds; Retry-After stays in seconds.
func RateLimit(engine *authcore.Engine, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authcore.ErrEngineNotReady)
				return
			}

			bearer, _ := BearerToken(r)
			d, err := engine.CheckRateLimit(r.Context(), route, bearer)
			if d.Limit > 0 {
				h := w.Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
			}
			if err != nil {
				if errors.Is(err, authcore.ErrRateLimited) {
					w.Header().Set("Retry-After", strconv.Itoa(authcore.RetryAfter(d, time.Now())))
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
