package goVerify

import (
	"context"
	"errors"

	"github.com/MrEthical07/goVerify/internal"
)

const (
	auditEventCaptchaIssue        = "captcha_issue"
	auditEventVerificationRequest = "verification_request"
	auditEventVerificationCheck   = "verification_check"
	auditEventAttestationIssue    = "attestation_issue"
	auditEventSessionEnd          = "session_end"
)

// AuditErrorCode is the coarse failure reason recorded in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrIdentityRequired   AuditErrorCode = "identity_required"
	auditErrCaptchaMismatch    AuditErrorCode = "captcha_mismatch"
	auditErrIdentityNotFound   AuditErrorCode = "identity_not_found"
	auditErrInvalidIdentity    AuditErrorCode = "invalid_identity_format"
	auditErrChannelUnavailable AuditErrorCode = "channel_unavailable"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrVerificationFailed AuditErrorCode = "verification_failed"
	auditErrRenderFailed       AuditErrorCode = "render_failed"
	auditErrSessionUnavailable AuditErrorCode = "session_unavailable"
	auditErrNotVerified        AuditErrorCode = "not_verified"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sessionKey string,
	tenancy string,
	channel Channel,
	challengeID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		Tenancy:     tenancy,
		ChallengeID: challengeID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if sessionKey != "" {
		event.SessionRef = internal.Fingerprint(sessionKey)
	}
	if channel != ChannelUnknown {
		event.Channel = channel.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrIdentityRequired):
		return auditErrIdentityRequired
	case errors.Is(err, ErrCaptchaMismatch):
		return auditErrCaptchaMismatch
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityNotFound
	case errors.Is(err, ErrInvalidIdentityFormat):
		return auditErrInvalidIdentity
	case errors.Is(err, ErrChannelUnavailable):
		return auditErrChannelUnavailable
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrVerificationFailed):
		return auditErrVerificationFailed
	case errors.Is(err, ErrRenderFailed):
		return auditErrRenderFailed
	case errors.Is(err, ErrSessionUnavailable):
		return auditErrSessionUnavailable
	case errors.Is(err, ErrNotVerified):
		return auditErrNotVerified
	case errors.Is(err, ErrEngineNotReady),
		errors.Is(err, ErrAttestationDisabled):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
