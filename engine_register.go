package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/storage"
)

// Register creates a subject with a credentials account and sends an email
// verification code. The subject is returned even when only the delivery
// failed, together with ErrNotifyFailed.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*storage.Subject, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.Register")
	subject, err := e.register(ctx, in)
	if subject != nil {
		span.SetAttributes(attribute.String("authcore.subject_id", subject.ID))
	}
	endSpan(span, err)
	return subject, err
}

func (e *Engine) register(ctx context.Context, in RegisterInput) (*storage.Subject, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}
	if err := e.checkPasswordPolicy(in.Password); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, err, nil)
		return nil, err
	}

	if _, err := e.store.GetSubjectByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", email, ErrAccountExists, nil)
		return nil, ErrAccountExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		err = mapStoreErr(err, nil)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, err, nil)
		return nil, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	now := time.Now().UTC()
	subject := &storage.Subject{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Role:      e.config.Account.DefaultRole,
		CreatedAt: now,
		UpdatedAt: now,
	}
	account := &storage.Account{
		ID:           uuid.NewString(),
		ProviderID:   storage.CredentialsProvider,
		AccountID:    subject.ID,
		SubjectID:    subject.ID,
		Type:         storage.AccountCredentials,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.store.CreateSubjectWithAccount(ctx, subject, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", email, ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		err = mapStoreErr(err, nil)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, subject.ID, email, nil, nil)

	if err := e.issueAndSend(ctx, subject, storage.PurposeEmail); err != nil {
		return subject, err
	}
	return subject, nil
}

// ResendVerification issues a fresh email code. Unknown or already verified
// addresses succeed without sending anything.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.ResendVerification")
	err := e.resendVerification(ctx, email)
	endSpan(span, err)
	return err
}

func (e *Engine) resendVerification(ctx context.Context, raw string) error {
	email, err := normalizeEmail(raw)
	if err != nil {
		return err
	}

	subject, err := e.store.GetSubjectByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return mapStoreErr(err, nil)
	}
	if subject.EmailVerified {
		return nil
	}
	return e.issueAndSend(ctx, subject, storage.PurposeEmail)
}

// issueAndSend replaces the subject's code with a new one for purpose and
// delivers it.
func (e *Engine) issueAndSend(ctx context.Context, subject *storage.Subject, purpose storage.Purpose) error {
	code, err := e.codes.Issue(ctx, subject.ID, purpose)
	if err != nil {
		return mapCodeErr(err)
	}
	e.metricInc(MetricCodeIssued)

	kind := notify.KindEmailVerification
	if purpose == storage.PurposePassword {
		kind = notify.KindPasswordReset
	}

	err = e.sender.Send(ctx, notify.Message{
		Kind: kind,
		To:   subject.Email,
		Name: subject.Name,
		Code: code,
	})
	if err != nil {
		e.metricInc(MetricNotifyFailure)
		e.logger.Error("code delivery failed",
			zap.String("subject_id", subject.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}
	return nil
}
