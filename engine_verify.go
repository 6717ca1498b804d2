package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/storage"
)

// Verify redeems a code sent to email. An email code marks the address
// verified and, when Account.SessionOnEmailVerify is set, logs the subject
// in. A password code opens a reset session for ResetPassword.
//
// Unknown addresses fail like a wrong code.
func (e *Engine) Verify(ctx context.Context, email, code string, purpose storage.Purpose) (VerifyResult, error) {
	if e == nil || e.store == nil {
		return VerifyResult{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.Verify", attribute.String("authcore.purpose", string(purpose)))
	res, err := e.verify(ctx, email, code, purpose)
	endSpan(span, err)

	if err != nil {
		if errors.Is(err, ErrCodeInvalid) || errors.Is(err, ErrCodeExpired) {
			e.metricInc(MetricCodeRejected)
		}
		e.emitAudit(ctx, auditEventVerifyFailure, false, res.SubjectID, email, err, func() map[string]string {
			return map[string]string{"purpose": string(purpose)}
		})
		return VerifyResult{}, err
	}

	e.emitAudit(ctx, auditEventVerifySuccess, true, res.SubjectID, email, nil, func() map[string]string {
		return map[string]string{"purpose": string(purpose)}
	})
	return res, nil
}

func (e *Engine) verify(ctx context.Context, rawEmail, code string, purpose storage.Purpose) (VerifyResult, error) {
	if !purpose.Valid() {
		return VerifyResult{}, ErrInvalidPurpose
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return VerifyResult{}, ErrCodeRequired
	}
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return VerifyResult{}, err
	}

	subject, err := e.store.GetSubjectByEmail(ctx, email)
	if err != nil {
		return VerifyResult{}, mapStoreErr(err, ErrCodeInvalid)
	}
	res := VerifyResult{Purpose: purpose, SubjectID: subject.ID}

	if err := e.codes.Redeem(ctx, subject.ID, code, purpose); err != nil {
		return res, mapCodeErr(err)
	}
	e.metricInc(MetricCodeRedeemed)

	switch purpose {
	case storage.PurposeEmail:
		if !subject.EmailVerified {
			if err := e.store.MarkEmailVerified(ctx, subject.ID, time.Now().UTC()); err != nil {
				return res, mapStoreErr(err, ErrSubjectNotFound)
			}
		}
		e.metricInc(MetricEmailVerified)

		if e.config.Account.SessionOnEmailVerify {
			token, err := e.sessions.CreateOrReuse(ctx, subject.ID, sessionMetadata(ctx))
			if err != nil {
				e.logger.Error("session create failed after code redemption",
					zap.String("subject_id", subject.ID),
					zap.Error(err),
				)
				return res, mapSessionErr(err)
			}
			e.metricInc(MetricSessionCreated)
			res.Token = token
		}

	case storage.PurposePassword:
		// The code is already consumed here; the subject has to request a
		// new one.
		handle, err := e.resets.Open(ctx, subject.Email)
		if err != nil {
			e.logger.Error("reset session open failed after code redemption",
				zap.String("subject_id", subject.ID),
				zap.Error(err),
			)
			return res, mapResetErr(err)
		}
		res.ResetHandle = handle
	}

	return res, nil
}
