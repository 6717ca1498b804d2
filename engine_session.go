package authcore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// Logout deletes the session bound to token. Logging out twice is not an
// error.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.Logout")

	claims, err := e.verifyToken(token)
	if err == nil {
		span.SetAttributes(attribute.String("authcore.subject_id", claims.SubjectID))
		if ierr := e.sessions.Invalidate(ctx, token); ierr != nil {
			err = mapSessionErr(ierr)
		}
	}
	endSpan(span, err)

	subjectID := ""
	if claims != nil {
		subjectID = claims.SubjectID
	}
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, subjectID, "", err, nil)
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, subjectID, "", nil, nil)
	return nil
}

// GetSession returns the subject and active session behind token. A token
// whose session was replaced or logged out fails with ErrSessionNotFound.
func (e *Engine) GetSession(ctx context.Context, token string) (*SessionInfo, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "authcore.GetSession")
	info, err := e.getSession(ctx, token)
	endSpan(span, err)
	return info, err
}

func (e *Engine) getSession(ctx context.Context, token string) (*SessionInfo, error) {
	claims, err := e.verifyToken(token)
	if err != nil {
		return nil, err
	}

	subject, err := e.store.GetSubjectByID(ctx, claims.SubjectID)
	if err != nil {
		return nil, mapStoreErr(err, ErrSubjectNotFound)
	}

	sess, err := e.sessions.Lookup(ctx, subject.ID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	if sess.Token != token {
		return nil, ErrSessionNotFound
	}

	return &SessionInfo{
		SubjectID:     subject.ID,
		Email:         subject.Email,
		Name:          subject.Name,
		Role:          subject.Role,
		EmailVerified: subject.EmailVerified,
		SessionID:     sess.ID,
		ExpiresAt:     sess.ExpiresAt,
		CreatedAt:     sess.CreatedAt,
		IPAddress:     sess.IPAddress,
		UserAgent:     sess.UserAgent,
	}, nil
}
