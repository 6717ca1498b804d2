package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, cfg Config) (*Manager, *time.Time) {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
	if _, err := NewManager(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret to fail")
	}
	if _, err := NewManager(Config{Secret: testSecret, Leeway: time.Hour}); err == nil {
		t.Fatal("expected large leeway to fail")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m, now := newTestManager(t, Config{})

	token, err := m.Issue(Claims{SubjectID: "u1", Role: "admin"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SubjectID != "u1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected exp %v, got %v", now.Add(time.Hour), claims.ExpiresAt)
	}
	if claims.TokenID == "" {
		t.Fatal("expected token id")
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	a, err := m.Issue(Claims{SubjectID: "u1", Role: "user"}, time.Hour)
	if err != nil {
		t.Fatalf("issue a: %v", err)
	}
	b, err := m.Issue(Claims{SubjectID: "u1", Role: "user"}, time.Hour)
	if err != nil {
		t.Fatalf("issue b: %v", err)
	}
	if a == b {
		t.Fatal("expected tokens issued in the same second to differ")
	}
}

func TestVerifyExpired(t *testing.T) {
	m, now := newTestManager(t, Config{})

	token, err := m.Issue(Claims{SubjectID: "u1", Role: "user"}, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := now.Add(2 * time.Minute)
	m.now = func() time.Time { return later }

	if _, err := m.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyLeeway(t *testing.T) {
	m, now := newTestManager(t, Config{Leeway: 30 * time.Second})

	token, err := m.Issue(Claims{SubjectID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := now.Add(time.Minute + 10*time.Second)
	m.now = func() time.Time { return later }
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected token inside leeway to verify: %v", err)
	}
}

func TestVerifyInvalidSignature(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	other, _ := newTestManager(t, Config{Secret: []byte("ffffffffffffffffffffffffffffffff")})

	token, err := other.Issue(Claims{SubjectID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	good, err := m.Issue(Claims{SubjectID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tampered := good[:len(good)-2] + flip(good[len(good)-2:])
	if _, err := m.Verify(tampered); err == nil {
		t.Fatal("expected tampered token to fail")
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	m, now := newTestManager(t, Config{})

	claims := tokenClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: gjwt.NewNumericDate(now.Add(time.Hour)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Verify(none); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestVerifyMalformed(t *testing.T) {
	m, now := newTestManager(t, Config{})

	for _, token := range []string{"", "   ", "abc", "a.b.c", strings.Repeat("x", 64)} {
		if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", token, err)
		}
	}

	noExp := tokenClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "u1"}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, noExp).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected missing exp to be malformed, got %v", err)
	}

	noSubject := tokenClaims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(now.Add(time.Hour))}}
	token, err = gjwt.NewWithClaims(gjwt.SigningMethodHS256, noSubject).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected missing subject to be malformed, got %v", err)
	}
}

func TestVerifyIssuerAudience(t *testing.T) {
	m, _ := newTestManager(t, Config{Issuer: "authcore", Audience: "api"})
	other, _ := newTestManager(t, Config{Issuer: "someone-else", Audience: "api"})

	token, err := other.Issue(Claims{SubjectID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}

	own, err := m.Issue(Claims{SubjectID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(own); err != nil {
		t.Fatalf("verify own: %v", err)
	}
}

func TestIssueValidatesInput(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	if _, err := m.Issue(Claims{SubjectID: "u1"}, 0); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
	if _, err := m.Issue(Claims{}, time.Minute); err == nil {
		t.Fatal("expected empty subject to fail")
	}
}

func flip(s string) string {
	out := []byte(s)
	for i := range out {
		if out[i] == 'A' {
			out[i] = 'B'
		} else {
			out[i] = 'A'
		}
	}
	return string(out)
}
