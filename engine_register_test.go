package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/storage"
)

func TestRegisterSendsEmailCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	subject, err := env.engine.Register(ctx, RegisterInput{Email: "  Alice@Example.COM ", Password: testPassword, Name: "Alice"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if subject.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", subject.Email)
	}
	if subject.Role != storage.DefaultRole || subject.EmailVerified {
		t.Fatalf("unexpected subject %+v", subject)
	}

	msg, ok := env.sent.Last("alice@example.com")
	if !ok {
		t.Fatal("verification code not sent")
	}
	if msg.Kind != notify.KindEmailVerification || len(msg.Code) != 6 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if env.store.CodeCount(subject.ID) != 1 {
		t.Fatalf("expected one active code, got %d", env.store.CodeCount(subject.ID))
	}

	account, err := env.store.GetAccount(ctx, subject.ID, storage.AccountCredentials)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.PasswordHash == testPassword || account.ProviderID != storage.CredentialsProvider {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "dup@example.com")

	_, err := env.engine.Register(context.Background(), RegisterInput{Email: "DUP@example.com", Password: testPassword})
	if !errors.Is(err, ErrAccountExists) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if PublicMessage(err) != MsgAccountExists {
		t.Fatalf("unexpected public message %q", PublicMessage(err))
	}
	if env.engine.MetricsSnapshot().Counters[MetricRegisterDuplicate] != 1 {
		t.Fatal("duplicate not counted")
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"empty email", RegisterInput{Password: testPassword}, ErrInvalidEmail},
		{"malformed email", RegisterInput{Email: "not-an-email", Password: testPassword}, ErrInvalidEmail},
		{"short password", RegisterInput{Email: "a@example.com", Password: "short"}, ErrPasswordPolicy},
		{"blank password", RegisterInput{Email: "a@example.com", Password: "          "}, ErrPasswordPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Register(ctx, tt.in)
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(env.sent.Messages()) != 0 {
		t.Fatal("no message expected for rejected registrations")
	}
}

func TestRegisterNotifyFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sent.Err = errors.New("smtp down")

	subject, err := env.engine.Register(context.Background(), RegisterInput{Email: "n@example.com", Password: testPassword})
	if !errors.Is(err, ErrNotifyFailed) || !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrNotifyFailed, got %v", err)
	}
	if subject == nil {
		t.Fatal("subject should be returned when only delivery failed")
	}
	if env.engine.MetricsSnapshot().Counters[MetricNotifyFailure] != 1 {
		t.Fatal("notify failure not counted")
	}
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	first := env.register(t, "resend@example.com")

	if err := env.engine.ResendVerification(ctx, "resend@example.com"); err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	msgs := env.sent.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	second := msgs[1].Code

	if first != second {
		if _, err := env.engine.Verify(ctx, "resend@example.com", first, storage.PurposeEmail); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("superseded code should be rejected, got %v", err)
		}
	}
	if _, err := env.engine.Verify(ctx, "resend@example.com", second, storage.PurposeEmail); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if err := env.engine.ResendVerification(ctx, "resend@example.com"); err != nil {
		t.Fatalf("ResendVerification on verified subject failed: %v", err)
	}
	if err := env.engine.ResendVerification(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email should be masked, got %v", err)
	}
	if len(env.sent.Messages()) != 2 {
		t.Fatal("no message expected for verified or unknown subjects")
	}
}
