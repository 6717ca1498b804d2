// Package httpapi exposes the authcore Engine as a JSON HTTP API.
//
// Routes live under /auth and mirror the Engine flows. Every credential
// route is rate limited with the policy of its route name; the rest share
// the default policy.
package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
)

// routeSession is the rate-limit route for token-bearing endpoints.
const routeSession = "session"

// Options tune the handler.
type Options struct {
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// DisableMetrics hides /metrics.
	DisableMetrics bool
	Logger         *zap.Logger
}

type server struct {
	engine *authcore.Engine
	logger *zap.Logger
}

// New returns the root handler.
func New(engine *authcore.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{engine: engine, logger: logger}

	limited := func(route string, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(engine, route)(h)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/signup", limited(authcore.RouteSignup, s.signup))
	mux.Handle("POST /auth/login", limited(authcore.RouteLogin, s.login))
	mux.Handle("POST /auth/verify", limited(authcore.RouteVerify, s.verify))
	mux.Handle("POST /auth/resend-verification", limited(authcore.RouteVerify, s.resendVerification))
	mux.Handle("POST /auth/forgot-password", limited(authcore.RouteForgotPassword, s.forgotPassword))
	mux.Handle("POST /auth/reset-password", limited(authcore.RouteResetPassword, s.resetPassword))
	mux.Handle("POST /auth/logout", limited(routeSession, s.logout))
	mux.Handle("POST /auth/get-session", limited(routeSession, s.getSession))
	mux.Handle("GET /auth/me", middleware.RequireSession(engine)(http.HandlerFunc(s.me)))

	mux.HandleFunc("GET /healthz", s.health)
	if !opts.DisableMetrics {
		mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(engine).Handler())
	}

	return middleware.ClientInfo(opts.TrustProxy)(mux)
}
