package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db), mock
}

func TestGetSubjectByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "email", "name", "email_verified", "role", "created_at", "updated_at"}).
		AddRow("u1", "a@example.com", "Ann", true, "user", now, now)
	mock.ExpectQuery(`SELECT .* FROM subjects WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(rows)

	sub, err := s.GetSubjectByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", sub.ID)
	assert.True(t, sub.EmailVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubjectNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM subjects WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetSubjectByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplaceSessionsRunsInTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM sessions WHERE subject_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("s1", "tok", "u1", sqlmock.AnyArg(), sqlmock.AnyArg(), "10.0.0.1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ReplaceSessions(context.Background(), &storage.Session{
		ID: "s1", Token: "tok", SubjectID: "u1",
		ExpiresAt: now.Add(24 * time.Hour), CreatedAt: now, IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSessionsRollsBackOnDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO sessions`).WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	mock.ExpectRollback()

	err := s.ReplaceSessions(context.Background(), &storage.Session{ID: "s1", Token: "tok", SubjectID: "u1"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceVerificationCodes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM verification_codes WHERE subject_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO verification_codes`).
		WithArgs("c1", "u1", "123456", "email", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ReplaceVerificationCodes(context.Background(), &storage.VerificationCode{
		ID: "c1", SubjectID: "u1", Code: "123456", Purpose: storage.PurposeEmail,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSessionsAbortsWhenLockFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("u1").
		WillReturnError(errors.New("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	err := s.ReplaceSessions(context.Background(), &storage.Session{ID: "s1", Token: "tok", SubjectID: "u1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteVerificationCodeReportsRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM verification_codes WHERE id = \$1`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM verification_codes WHERE id = \$1`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := s.DeleteVerificationCode(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.DeleteVerificationCode(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestMarkEmailVerifiedMissingSubject(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE subjects SET email_verified = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkEmailVerified(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateSubjectWithAccountRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO subjects`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := s.CreateSubjectWithAccount(context.Background(),
		&storage.Subject{ID: "u1", Email: "a@example.com"},
		&storage.Account{ID: "a1", SubjectID: "u1", Type: storage.AccountCredentials},
	)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUsesEmbeddedDir(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)

	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
