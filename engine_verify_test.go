package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/storage"
)

func TestVerifyEmailCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	code := env.register(t, "gina@example.com")

	res, err := env.engine.Verify(ctx, "gina@example.com", code, storage.PurposeEmail)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.SubjectID == "" || res.Token != "" || res.ResetHandle != "" {
		t.Fatalf("unexpected result %+v", res)
	}

	subject, err := env.store.GetSubjectByEmail(ctx, "gina@example.com")
	if err != nil {
		t.Fatalf("GetSubjectByEmail failed: %v", err)
	}
	if !subject.EmailVerified {
		t.Fatal("email should be verified")
	}

	if _, err := env.engine.Verify(ctx, "gina@example.com", code, storage.PurposeEmail); !errors.Is(err, ErrCodeInvalid) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrCodeInvalid on reuse, got %v", err)
	}
	if env.store.CodeCount(subject.ID) != 0 {
		t.Fatal("redeemed code should be deleted")
	}
}

func TestVerifyEmailCanLogIn(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Account.SessionOnEmailVerify = true
	})
	ctx := context.Background()
	code := env.register(t, "hank@example.com")

	res, err := env.engine.Verify(ctx, "hank@example.com", code, storage.PurposeEmail)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected session token")
	}
	info, err := env.engine.GetSession(ctx, res.Token)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !info.EmailVerified {
		t.Fatal("session should report a verified email")
	}
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	code := env.register(t, "ivy@example.com")

	if _, err := env.engine.Verify(ctx, "ivy@example.com", code, storage.PurposePassword); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}
	// A purpose mismatch does not consume the code.
	if _, err := env.engine.Verify(ctx, "ivy@example.com", code, storage.PurposeEmail); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestVerifyInputValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.engine.Verify(ctx, "a@example.com", "123456", storage.Purpose("sms")); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, "a@example.com", "  ", storage.PurposeEmail); !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("expected ErrCodeRequired, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, "nobody@example.com", "123456", storage.PurposeEmail); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("unknown email should look like a bad code, got %v", err)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Verification.CodeTTL = time.Millisecond
	})
	ctx := context.Background()
	code := env.register(t, "jack@example.com")
	time.Sleep(10 * time.Millisecond)

	_, err := env.engine.Verify(ctx, "jack@example.com", code, storage.PurposeEmail)
	if !errors.Is(err, ErrCodeExpired) || !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, "jack@example.com", code, storage.PurposeEmail); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expired code should be deleted, got %v", err)
	}
	if env.engine.MetricsSnapshot().Counters[MetricCodeRejected] != 2 {
		t.Fatal("rejected codes not counted")
	}
}

func TestVerifyLogsResetOpenFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	env := newTestEnv(t, nil, func(b *Builder) { b.WithLogger(zap.New(core)) })
	ctx := context.Background()
	env.register(t, "kate@example.com")

	if err := env.engine.ForgotPassword(ctx, "kate@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	msg, ok := env.sent.Last("kate@example.com")
	if !ok || msg.Kind != notify.KindPasswordReset {
		t.Fatalf("reset code not sent: %+v", msg)
	}

	env.mr.Close()
	if _, err := env.engine.Verify(ctx, "kate@example.com", msg.Code, storage.PurposePassword); !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}

	entries := logs.FilterMessage("reset session open failed after code redemption").All()
	if len(entries) != 1 {
		t.Fatalf("expected one error log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["subject_id"]; got == "" || got == nil {
		t.Fatal("log entry missing subject_id")
	}

	// The code was consumed before the cache failed.
	if _, err := env.engine.Verify(ctx, "kate@example.com", msg.Code, storage.PurposePassword); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected consumed code, got %v", err)
	}
}
