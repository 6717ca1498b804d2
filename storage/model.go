package storage

import "time"

// DefaultRole is assigned to subjects created without an explicit role.
const DefaultRole = "user"

// AccountType is the authentication method bound to an [Account].
type AccountType string

const (
	AccountCredentials AccountType = "credentials"
	AccountOAuth       AccountType = "oauth"
)

// CredentialsProvider is the provider id used for password accounts.
const CredentialsProvider = "credentials"

// Purpose scopes a verification code to the flow that issued it.
type Purpose string

const (
	PurposeEmail    Purpose = "email"
	PurposePassword Purpose = "password"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeEmail || p == PurposePassword
}

// Subject is an end user.
type Subject struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Account binds an authentication method to a subject. PasswordHash is only
// set for credentials accounts.
type Account struct {
	ID           string
	ProviderID   string
	AccountID    string
	SubjectID    string
	Type         AccountType
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a persisted login. Token is unique across all rows.
type Session struct {
	ID        string
	Token     string
	SubjectID string
	ExpiresAt time.Time
	CreatedAt time.Time
	IPAddress string
	UserAgent string
}

// Active reports whether the session is still valid at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// VerificationCode is a one-time numeric code bound to a subject and purpose.
type VerificationCode struct {
	ID        string
	SubjectID string
	Code      string
	Purpose   Purpose
	ExpiresAt time.Time
}
