package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/storage"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Type  string `json:"type"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type userView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type sessionView struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

type sessionEnvelope struct {
	Data struct {
		Session *sessionView `json:"session"`
		User    *userView    `json:"user"`
	} `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

const (
	msgSignup          = "Verification code sent to your email"
	msgSignupUndeliver = "Account created but the verification code could not be sent. Request a new one."
	msgEmailVerified   = "Email verified successfully. Proceed to login."
	msgCodeVerified    = "Code verified. Proceed to reset password."
	msgPasswordReset   = "Password reset successfully"
	msgLoggedOut       = "Logged out"
)

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrInvalidInput, err)
	}
	return nil
}

// fail writes err and logs it when it is not a client error.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := middleware.StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	middleware.WriteError(w, err)
}

func toUserView(sub *storage.Subject) *userView {
	return &userView{
		ID:            sub.ID,
		Email:         sub.Email,
		Name:          sub.Name,
		Role:          sub.Role,
		EmailVerified: sub.EmailVerified,
		CreatedAt:     sub.CreatedAt,
	}
}

func (s *server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	sub, err := s.engine.Register(r.Context(), authcore.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	msg := msgSignup
	switch {
	case err == nil:
	case sub != nil && errors.Is(err, authcore.ErrNotifyFailed):
		msg = msgSignupUndeliver
	default:
		s.fail(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, struct {
		Message string    `json:"message"`
		User    *userView `json:"user"`
	}{Message: msg, User: toUserView(sub)})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{Token: token})
}

func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.engine.Verify(r.Context(), req.Email, req.Code, storage.Purpose(req.Type))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	msg := msgEmailVerified
	if res.Purpose == storage.PurposePassword {
		msg = msgCodeVerified
	}
	middleware.WriteJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		Token   string `json:"token,omitempty"`
	}{Message: msg, Token: res.Token})
}

func (s *server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engine.ResendVerification(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: msgSignup})
}

func (s *server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: authcore.MsgForgotPasswordAck})
}

func (s *server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engine.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: msgPasswordReset})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		s.fail(w, r, authcore.ErrTokenRequired)
		return
	}
	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

// getSession answers 200 with null fields for anonymous callers.
func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	var out sessionEnvelope

	token, ok := middleware.BearerToken(r)
	if ok {
		info, err := s.engine.GetSession(r.Context(), token)
		switch {
		case err == nil:
			out.Data.Session, out.Data.User = splitSessionInfo(info)
		case errors.Is(err, authcore.ErrDependencyUnavailable):
			s.fail(w, r, err)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, out)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		s.fail(w, r, authcore.ErrSessionNotFound)
		return
	}
	var out sessionEnvelope
	out.Data.Session, out.Data.User = splitSessionInfo(info)
	middleware.WriteJSON(w, http.StatusOK, out)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, struct {
		Status            string `json:"status"`
		RateLimitDegraded bool   `json:"rateLimitDegraded"`
	}{Status: "ok", RateLimitDegraded: s.engine.RateLimitDegraded()})
}

func splitSessionInfo(info *authcore.SessionInfo) (*sessionView, *userView) {
	sess := &sessionView{
		ID:        info.SessionID,
		ExpiresAt: info.ExpiresAt,
		CreatedAt: info.CreatedAt,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	}
	user := &userView{
		ID:            info.SubjectID,
		Email:         info.Email,
		Name:          info.Name,
		Role:          info.Role,
		EmailVerified: info.EmailVerified,
	}
	return sess, user
}
