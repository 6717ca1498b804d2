package authcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/storage"
)

const newPassword = "brand-new-password-1"

// openReset runs forgot-password and verifies the emailed code.
func (env *testEnv) openReset(t *testing.T, email string) VerifyResult {
	t.Helper()
	ctx := context.Background()

	if err := env.engine.ForgotPassword(ctx, email); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	msg, ok := env.sent.Last(email)
	if !ok || msg.Kind != notify.KindPasswordReset {
		t.Fatalf("reset code not sent: %+v", msg)
	}
	res, err := env.engine.Verify(ctx, email, msg.Code, storage.PurposePassword)
	if err != nil {
		t.Fatalf("Verify password code failed: %v", err)
	}
	if res.ResetHandle == "" {
		t.Fatal("expected reset handle")
	}
	return res
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "kate@example.com")

	oldToken, err := env.engine.Login(ctx, "kate@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	env.openReset(t, "kate@example.com")
	if err := env.engine.ResetPassword(ctx, "kate@example.com", newPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := env.engine.GetSession(ctx, oldToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("sessions should be revoked, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "kate@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should fail, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "kate@example.com", newPassword); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricPasswordResetSuccess] != 1 || snap.Counters[MetricSessionsRevoked] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
}

func TestPasswordResetKeepsSessionsWhenConfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Reset.RevokeSessions = false
	})
	ctx := context.Background()
	env.register(t, "leo@example.com")

	token, err := env.engine.Login(ctx, "leo@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	env.openReset(t, "leo@example.com")
	if err := env.engine.ResetPassword(ctx, "leo@example.com", newPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := env.engine.GetSession(ctx, token); err != nil {
		t.Fatalf("session should survive, got %v", err)
	}
}

func TestResetPasswordRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "mia@example.com")

	err := env.engine.ResetPassword(context.Background(), "mia@example.com", newPassword)
	if !errors.Is(err, ErrResetSessionAbsent) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrResetSessionAbsent, got %v", err)
	}
	if PublicMessage(err) != MsgResetSession {
		t.Fatalf("unexpected public message %q", PublicMessage(err))
	}
}

func TestResetSessionIsSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "ned@example.com")
	env.openReset(t, "ned@example.com")

	if err := env.engine.ResetPassword(ctx, "ned@example.com", newPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if err := env.engine.ResetPassword(ctx, "ned@example.com", "another-password-2"); !errors.Is(err, ErrResetSessionAbsent) {
		t.Fatalf("expected ErrResetSessionAbsent, got %v", err)
	}
}

func TestResetSessionExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "olga@example.com")
	env.openReset(t, "olga@example.com")

	env.mr.FastForward(11 * time.Minute)

	if err := env.engine.ResetPassword(context.Background(), "olga@example.com", newPassword); !errors.Is(err, ErrResetSessionAbsent) {
		t.Fatalf("expected ErrResetSessionAbsent, got %v", err)
	}
}

func TestConcurrentResetsSucceedOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "pia@example.com")
	env.openReset(t, "pia@example.com")

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.engine.ResetPassword(ctx, "pia@example.com", newPassword)
			switch {
			case err == nil:
				ok.Add(1)
			case !errors.Is(err, ErrResetSessionAbsent):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 {
		t.Fatalf("expected exactly one successful reset, got %d", ok.Load())
	}
}

func TestForgotPasswordMasksUnknownEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	if err := env.engine.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected nil for unknown email, got %v", err)
	}
	if len(env.sent.Messages()) != 0 {
		t.Fatal("no message expected")
	}
}

func TestForgotPasswordReplacesEmailCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	emailCode := env.register(t, "quin@example.com")

	if err := env.engine.ForgotPassword(ctx, "quin@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	if _, err := env.engine.Verify(ctx, "quin@example.com", emailCode, storage.PurposeEmail); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("email code should be replaced, got %v", err)
	}
}

func TestResetPasswordRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "rita@example.com")
	env.openReset(t, "rita@example.com")

	if err := env.engine.ResetPassword(context.Background(), "rita@example.com", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	// The reset session is still usable.
	if err := env.engine.ResetPassword(context.Background(), "rita@example.com", newPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
}
