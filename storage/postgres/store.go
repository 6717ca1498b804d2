package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/storage"
)

// Store is a PostgreSQL-backed [storage.Store].
type Store struct {
	db      *sql.DB
	closers []func() error
}

var _ storage.Store = (*Store)(nil)

// New wraps an already migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases resources acquired by [Open]. It is a no-op for stores built
// with [New].
func (s *Store) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

const subjectColumns = `id, email, name, email_verified, role, created_at, updated_at`

func scanSubject(row *sql.Row) (*storage.Subject, error) {
	var sub storage.Subject
	err := row.Scan(&sub.ID, &sub.Email, &sub.Name, &sub.EmailVerified, &sub.Role, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// GetSubjectByID returns storage.ErrNotFound when no subject has id.
func (s *Store) GetSubjectByID(ctx context.Context, id string) (*storage.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id)
	return scanSubject(row)
}

// GetSubjectByEmail looks a subject up by its unique email.
func (s *Store) GetSubjectByEmail(ctx context.Context, email string) (*storage.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE email = $1`, email)
	return scanSubject(row)
}

// CreateSubjectWithAccount inserts both rows in one transaction. A taken
// email surfaces as storage.ErrDuplicate.
func (s *Store) CreateSubjectWithAccount(ctx context.Context, subject *storage.Subject, account *storage.Account) error {
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subjects (id, email, name, email_verified, role, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			subject.ID, subject.Email, subject.Name, subject.EmailVerified, subject.Role,
			subject.CreatedAt, subject.UpdatedAt,
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, provider_id, account_id, subject_id, type, password_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			account.ID, account.ProviderID, account.AccountID, account.SubjectID, string(account.Type),
			nullString(account.PasswordHash), account.CreatedAt, account.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("create subject: %w", translate(err))
	}
	return nil
}

// MarkEmailVerified sets email_verified and bumps updated_at.
func (s *Store) MarkEmailVerified(ctx context.Context, subjectID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subjects SET email_verified = TRUE, updated_at = $2 WHERE id = $1`,
		subjectID, at)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return requireRow(res)
}

// GetAccount returns the subject's account of the given type.
func (s *Store) GetAccount(ctx context.Context, subjectID string, accountType storage.AccountType) (*storage.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider_id, account_id, subject_id, type, password_hash, created_at, updated_at
		 FROM accounts
		 WHERE subject_id = $1 AND type = $2
		 ORDER BY created_at
		 LIMIT 1`,
		subjectID, string(accountType))

	var (
		acc  storage.Account
		typ  string
		hash sql.NullString
	)
	if err := row.Scan(&acc.ID, &acc.ProviderID, &acc.AccountID, &acc.SubjectID, &typ, &hash, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	acc.Type = storage.AccountType(typ)
	acc.PasswordHash = hash.String
	return &acc, nil
}

// UpdatePasswordHash overwrites the stored hash of a credentials account.
func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		accountID, hash, at)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

// FindActiveSession returns the newest session of the subject that has not
// expired at now.
func (s *Store) FindActiveSession(ctx context.Context, subjectID string, now time.Time) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, token, subject_id, expires_at, created_at, ip_address, user_agent
		 FROM sessions
		 WHERE subject_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		subjectID, now)

	var (
		sess   storage.Session
		ip, ua sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Token, &sess.SubjectID, &sess.ExpiresAt, &sess.CreatedAt, &ip, &ua); err != nil {
		return nil, translate(err)
	}
	sess.IPAddress = ip.String
	sess.UserAgent = ua.String
	return &sess, nil
}

// ReplaceSessions deletes every session of the subject and inserts sess in
// one transaction serialized per subject.
func (s *Store) ReplaceSessions(ctx context.Context, sess *storage.Session) error {
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		if err := lockSubject(ctx, tx, sess.SubjectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE subject_id = $1`, sess.SubjectID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, token, subject_id, expires_at, created_at, ip_address, user_agent)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sess.ID, sess.Token, sess.SubjectID, sess.ExpiresAt, sess.CreatedAt,
			nullString(sess.IPAddress), nullString(sess.UserAgent),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("replace sessions: %w", translate(err))
	}
	return nil
}

// DeleteSessionByToken removes the session carrying token, if any.
func (s *Store) DeleteSessionByToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteSessionsBySubject removes every session of the subject.
func (s *Store) DeleteSessionsBySubject(ctx context.Context, subjectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// ReplaceVerificationCodes deletes every code of the subject and inserts code
// in one transaction serialized per subject.
func (s *Store) ReplaceVerificationCodes(ctx context.Context, code *storage.VerificationCode) error {
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		if err := lockSubject(ctx, tx, code.SubjectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM verification_codes WHERE subject_id = $1`, code.SubjectID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO verification_codes (id, subject_id, code, purpose, expires_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			code.ID, code.SubjectID, code.Code, string(code.Purpose), code.ExpiresAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("replace codes: %w", translate(err))
	}
	return nil
}

// FindVerificationCode matches subject, code and purpose exactly.
func (s *Store) FindVerificationCode(ctx context.Context, subjectID, code string, purpose storage.Purpose) (*storage.VerificationCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, code, purpose, expires_at
		 FROM verification_codes
		 WHERE subject_id = $1 AND code = $2 AND purpose = $3
		 LIMIT 1`,
		subjectID, code, string(purpose))

	var (
		vc  storage.VerificationCode
		pur string
	)
	if err := row.Scan(&vc.ID, &vc.SubjectID, &vc.Code, &pur, &vc.ExpiresAt); err != nil {
		return nil, translate(err)
	}
	vc.Purpose = storage.Purpose(pur)
	return &vc, nil
}

// DeleteVerificationCode reports whether a row was removed, which lets
// concurrent redeemers decide who consumed the code.
func (s *Store) DeleteVerificationCode(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete code: %w", err)
	}
	return n > 0, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
