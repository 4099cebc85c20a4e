package goVerify

import (
	"context"
	"errors"
	"time"

	internalflows "github.com/MrEthical07/goVerify/internal/flows"
	"github.com/MrEthical07/goVerify/internal/stores"
	"github.com/google/uuid"
)

// RequestVerification checks the session's captcha, optionally resolves the
// identity in the directory, and sends a fresh code to the identity's
// channel. The captcha is consumed whatever the outcome. A code is stored
// only after the notifier reported delivery; it replaces any earlier code for
// the same channel.
//
// Errors: ErrCaptchaMismatch, ErrIdentityNotFound, ErrInvalidIdentityFormat,
// ErrChannelUnavailable, ErrDeliveryFailed, ErrEngineNotReady.
func (e *Engine) RequestVerification(ctx context.Context, sessionKey string, req VerificationRequest) (IssueResult, error) {
	return e.requestVerification(ctx, sessionKey, req, false)
}

// RequestVerificationForSession is RequestVerification for the identity
// recorded in the session facts. req.Identity and req.RequireIdentityLookup
// are ignored. Without a session identity it returns ErrIdentityRequired and
// leaves the captcha in place.
func (e *Engine) RequestVerificationForSession(ctx context.Context, sessionKey string, req VerificationRequest) (IssueResult, error) {
	req.Identity = ""
	req.RequireIdentityLookup = false
	return e.requestVerification(ctx, sessionKey, req, true)
}

func (e *Engine) requestVerification(ctx context.Context, sessionKey string, req VerificationRequest, sessionBound bool) (IssueResult, error) {
	if !e.ready() {
		return IssueResult{}, ErrEngineNotReady
	}

	issue, err := internalflows.RunRequestVerification(ctx, internalflows.VerificationInput{
		SessionKey:            sessionKey,
		Identity:              req.Identity,
		Tenancy:               req.Tenancy,
		CaptchaInput:          req.CaptchaInput,
		MessageType:           string(req.MessageType),
		RequireIdentityLookup: req.RequireIdentityLookup,
		SessionBound:          sessionBound,
	}, e.verificationFlowDeps())
	if err != nil {
		return IssueResult{}, err
	}

	return IssueResult{
		RevealedCode: issue.RevealedCode,
		Channel:      Channel(issue.Channel),
		ExpiresAt:    issue.ExpiresAt,
	}, nil
}

// CheckVerification matches code against the live challenge of identity's
// channel. On a match the challenge is consumed and a VerifiedMark is written
// to the session facts. A wrong code or identity leaves the challenge in
// place; an expired one is removed. Every unsuccessful check returns
// ErrVerificationFailed.
func (e *Engine) CheckVerification(ctx context.Context, sessionKey, identity, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunCheckVerification(ctx, internalflows.CheckInput{
		SessionKey: sessionKey,
		Identity:   identity,
		Code:       code,
	}, e.verificationFlowDeps())
}

// CheckVerificationForSession is CheckVerification for the identity recorded
// in the session facts.
func (e *Engine) CheckVerificationForSession(ctx context.Context, sessionKey, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunCheckVerification(ctx, internalflows.CheckInput{
		SessionKey:   sessionKey,
		Code:         code,
		SessionBound: true,
	}, e.verificationFlowDeps())
}

func (e *Engine) verificationFlowDeps() internalflows.VerificationDeps {
	cfg := e.config.Verification

	deps := internalflows.VerificationDeps{
		RevealCode:     cfg.RevealCode,
		SendTimeout:    cfg.SendTimeout,
		Now:            e.now,
		Logger:         e.logger,
		TakeCaptcha:    e.store.TakeCaptcha,
		CaptchaMatches: e.captchaMatches,
		IsDirectoryNotFound: func(err error) bool {
			return errors.Is(err, ErrDirectoryNotFound)
		},
		Classify: func(identity string) (string, uint8, bool) {
			d := e.router.Classify(identity)
			switch d.Kind {
			case DestinationEmail, DestinationPhone:
				return d.Address, uint8(d.Channel()), true
			default:
				return "", 0, false
			}
		},
		ResolveMessageType: func(mt string) string {
			return string(e.router.ResolveMessageType(MessageType(mt)))
		},
		EffectiveMinutes: func(mt string) int {
			return e.router.EffectiveMinutes(MessageType(mt))
		},
		RenderMessage: func(mt, code string, minutes int) (string, string, error) {
			msg, err := e.router.SelectTemplate(MessageType(mt), code, minutes)
			return msg.Subject, msg.Body, err
		},
		IsNotifierUnavailable: func(err error) bool {
			return errors.Is(err, ErrNotifierUnavailable)
		},
		GenerateCode: func() string {
			return e.codes.NumericCode(cfg.CodeLength)
		},
		NewChallengeID: uuid.NewString,
		PutOtp:         e.store.PutOtp,
		MatchOtp:       e.store.MatchAndConsumeOtp,
		RestoreOtp: func(key string, channel uint8, c stores.OTP, now time.Time) bool {
			return e.store.RestoreOtp(key, channel, c, now)
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		ObserveSend: func(d time.Duration) {
			e.metrics.Observe(MetricSendLatency, d)
		},
		EmitAudit: func(ctx context.Context, event string, success bool, sessionKey, tenancy string, channel uint8, challengeID string, err error, metadata func() map[string]string) {
			e.emitAudit(ctx, event, success, sessionKey, tenancy, Channel(channel), challengeID, err, metadata)
		},
		Metrics: internalflows.VerificationMetrics{
			CaptchaMismatch:       int(MetricCaptchaMismatch),
			VerificationRequested: int(MetricVerificationRequested),
			VerificationSent:      int(MetricVerificationSent),
			IdentityNotFound:      int(MetricIdentityNotFound),
			InvalidIdentity:       int(MetricInvalidIdentity),
			ChannelUnavailable:    int(MetricChannelUnavailable),
			DeliveryFailed:        int(MetricDeliveryFailed),
			VerificationSuccess:   int(MetricVerificationSuccess),
			VerificationFailure:   int(MetricVerificationFailure),
			VerificationExpired:   int(MetricVerificationExpired),
			IdentityRequired:      int(MetricIdentityRequired),
			SessionUnavailable:    int(MetricSessionUnavailable),
		},
		Events: internalflows.VerificationEvents{
			VerificationRequest: auditEventVerificationRequest,
			VerificationCheck:   auditEventVerificationCheck,
		},
		Errors: internalflows.VerificationErrors{
			EngineNotReady:        ErrEngineNotReady,
			IdentityRequired:      ErrIdentityRequired,
			CaptchaMismatch:       ErrCaptchaMismatch,
			IdentityNotFound:      ErrIdentityNotFound,
			InvalidIdentityFormat: ErrInvalidIdentityFormat,
			ChannelUnavailable:    ErrChannelUnavailable,
			DeliveryFailed:        ErrDeliveryFailed,
			VerificationFailed:    ErrVerificationFailed,
			SessionUnavailable:    ErrSessionUnavailable,
			InternalLookup:        errInternalLookup,
		},
	}

	if e.notifier != nil {
		deps.Send = func(ctx context.Context, channel uint8, address, subject, body string) error {
			return e.notifier.Send(ctx, Message{
				Channel:     Channel(channel),
				Destination: address,
				Subject:     subject,
				Body:        body,
			})
		}
	}
	if e.directory != nil {
		deps.FindIdentity = func(ctx context.Context, identity, tenancy string) error {
			_, err := e.directory.Find(ctx, identity, tenancy)
			return err
		}
	}
	if e.facts != nil {
		deps.SessionIdentity = e.facts.Identity
		deps.SetVerified = func(ctx context.Context, sessionKey, identity string, channel uint8, at time.Time) error {
			return e.facts.SetVerified(ctx, sessionKey, VerifiedMark{
				Identity:   identity,
				Channel:    Channel(channel),
				VerifiedAt: at,
			})
		}
	}

	return deps
}
