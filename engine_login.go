package authcore

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/storage"
)

// Login checks email and password and returns the bearer token of the
// subject's session, reusing an active session when one exists. Unknown
// email, missing credentials and a wrong password are indistinguishable.
func (e *Engine) Login(ctx context.Context, email, password string) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.Login")
	subjectID, token, err := e.login(ctx, email, password)
	if subjectID != "" {
		span.SetAttributes(attribute.String("authcore.subject_id", subjectID))
	}
	endSpan(span, err)

	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, email, err, nil)
		return "", err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, subjectID, email, nil, nil)
	return token, nil
}

func (e *Engine) login(ctx context.Context, rawEmail, password string) (string, string, error) {
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}
	if password == "" {
		return "", "", ErrInvalidCredentials
	}

	subject, err := e.store.GetSubjectByEmail(ctx, email)
	if err != nil {
		return "", "", mapStoreErr(err, ErrInvalidCredentials)
	}

	account, err := e.store.GetAccount(ctx, subject.ID, storage.AccountCredentials)
	if err != nil {
		return subject.ID, "", mapStoreErr(err, ErrInvalidCredentials)
	}
	if account.PasswordHash == "" {
		return subject.ID, "", ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		e.logger.Warn("stored password hash unreadable",
			zap.String("subject_id", subject.ID),
			zap.Error(err),
		)
		return subject.ID, "", ErrInvalidCredentials
	}
	if !ok {
		return subject.ID, "", ErrInvalidCredentials
	}

	if e.config.Account.RequireVerifiedEmail && !subject.EmailVerified {
		return subject.ID, "", ErrEmailNotVerified
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, account, password)
	}

	token, err := e.sessions.CreateOrReuse(ctx, subject.ID, sessionMetadata(ctx))
	if err != nil {
		err = mapSessionErr(err)
		if errors.Is(err, ErrSubjectNotFound) {
			err = ErrInvalidCredentials
		}
		return subject.ID, "", err
	}
	e.metricInc(MetricSessionCreated)

	return subject.ID, token, nil
}

// upgradeHash replaces legacy or weaker hashes. Failures are logged and do
// not fail the login.
func (e *Engine) upgradeHash(ctx context.Context, account *storage.Account, password string) {
	needs, err := e.hasher.NeedsRehash(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, account.ID, hash, time.Now().UTC()); err != nil {
		e.logger.Warn("password hash upgrade failed",
			zap.String("subject_id", account.SubjectID),
			zap.Error(err),
		)
	}
}
