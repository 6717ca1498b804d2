package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/storage"
)

// ForgotPassword sends a password code to email. Unknown addresses return
// nil so callers cannot enumerate accounts.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.ForgotPassword")
	subjectID, err := e.forgotPassword(ctx, email)
	endSpan(span, err)

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, err == nil, subjectID, email, err, nil)
	return err
}

func (e *Engine) forgotPassword(ctx context.Context, rawEmail string) (string, error) {
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return "", err
	}

	subject, err := e.store.GetSubjectByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", mapStoreErr(err, nil)
	}

	if _, err := e.store.GetAccount(ctx, subject.ID, storage.AccountCredentials); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// OAuth-only subjects have no password to reset.
			return subject.ID, nil
		}
		return subject.ID, mapStoreErr(err, nil)
	}

	return subject.ID, e.issueAndSend(ctx, subject, storage.PurposePassword)
}

// ResetPassword sets a new password for email. It requires the reset session
// opened by verifying a password code, and consumes it. Every session of the
// subject is revoked afterwards unless Reset.RevokeSessions is false.
func (e *Engine) ResetPassword(ctx context.Context, email, newPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.ResetPassword")
	subjectID, err := e.resetPassword(ctx, email, newPassword)
	endSpan(span, err)

	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
	} else {
		e.metricInc(MetricPasswordResetSuccess)
	}
	e.emitAudit(ctx, auditEventPasswordResetConfirm, err == nil, subjectID, email, err, nil)
	return err
}

func (e *Engine) resetPassword(ctx context.Context, rawEmail, newPassword string) (string, error) {
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return "", err
	}
	if err := e.checkPasswordPolicy(newPassword); err != nil {
		return "", err
	}

	handle, err := e.resets.Lookup(ctx, email)
	if err != nil {
		return "", mapResetErr(err)
	}

	subject, err := e.store.GetSubjectByEmail(ctx, email)
	if err != nil {
		return "", mapStoreErr(err, ErrSubjectNotFound)
	}
	account, err := e.store.GetAccount(ctx, subject.ID, storage.AccountCredentials)
	if err != nil {
		return subject.ID, mapStoreErr(err, ErrAccountNotFound)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return subject.ID, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	owner, err := e.resets.Consume(ctx, handle)
	if err != nil {
		return subject.ID, mapResetErr(err)
	}
	if owner != email {
		return subject.ID, ErrResetSessionAbsent
	}

	if err := e.store.UpdatePasswordHash(ctx, account.ID, hash, time.Now().UTC()); err != nil {
		return subject.ID, mapStoreErr(err, ErrAccountNotFound)
	}

	if e.config.Reset.RevokeSessions {
		if err := e.sessions.InvalidateAll(ctx, subject.ID); err != nil {
			e.logger.Error("session revocation after password reset failed",
				zap.String("subject_id", subject.ID),
				zap.Error(err),
			)
			return subject.ID, mapSessionErr(err)
		}
		e.metricInc(MetricSessionsRevoked)
	}

	return subject.ID, nil
}
