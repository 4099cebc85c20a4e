package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goVerify/internal/stores"
)

type VerificationInput struct {
	SessionKey            string
	Identity              string
	Tenancy               string
	CaptchaInput          string
	MessageType           string
	RequireIdentityLookup bool
	// SessionBound reads the identity from session facts and skips the
	// directory lookup.
	SessionBound bool
}

type VerificationIssue struct {
	RevealedCode string
	Channel      uint8
	ExpiresAt    time.Time
}

type CheckInput struct {
	SessionKey   string
	Identity     string
	Code         string
	SessionBound bool
}

type VerificationMetrics struct {
	CaptchaMismatch       int
	VerificationRequested int
	VerificationSent      int
	IdentityNotFound      int
	InvalidIdentity       int
	ChannelUnavailable    int
	DeliveryFailed        int
	VerificationSuccess   int
	VerificationFailure   int
	VerificationExpired   int
	IdentityRequired      int
	SessionUnavailable    int
}

type VerificationEvents struct {
	VerificationRequest string
	VerificationCheck   string
}

type VerificationErrors struct {
	EngineNotReady        error
	IdentityRequired      error
	CaptchaMismatch       error
	IdentityNotFound      error
	InvalidIdentityFormat error
	ChannelUnavailable    error
	DeliveryFailed        error
	VerificationFailed    error
	SessionUnavailable    error
	InternalLookup        error
}

type VerificationDeps struct {
	RevealCode  bool
	SendTimeout time.Duration
	Now         func() time.Time
	Logger      *slog.Logger

	SessionIdentity func(context.Context, string) (string, bool, error)
	SetVerified     func(context.Context, string, string, uint8, time.Time) error

	TakeCaptcha    func(string) (stores.Captcha, bool)
	CaptchaMatches func(expected, input string) bool

	FindIdentity        func(ctx context.Context, identity, tenancy string) error
	IsDirectoryNotFound func(error) bool

	// Classify returns the normalized address and channel of identity, or
	// ok=false when identity is neither an email nor a phone number.
	Classify           func(string) (address string, channel uint8, ok bool)
	ResolveMessageType func(string) string
	EffectiveMinutes   func(string) int
	RenderMessage      func(messageType, code string, minutes int) (subject, body string, err error)

	Send                  func(ctx context.Context, channel uint8, address, subject, body string) error
	IsNotifierUnavailable func(error) bool

	GenerateCode   func() string
	NewChallengeID func() string
	PutOtp         func(string, uint8, stores.OTP)
	MatchOtp       func(key string, channel uint8, identity, code string, now time.Time) (stores.OTP, stores.MatchOutcome)
	RestoreOtp     func(key string, channel uint8, c stores.OTP, now time.Time) bool

	MetricInc   func(int)
	ObserveSend func(time.Duration)
	EmitAudit   func(ctx context.Context, event string, success bool, sessionKey, tenancy string, channel uint8, challengeID string, err error, metadata func() map[string]string)

	Metrics VerificationMetrics
	Events  VerificationEvents
	Errors  VerificationErrors
}

// RunRequestVerification validates the captcha, optionally resolves the
// identity, sends a fresh code and stores it once delivery succeeded.
func RunRequestVerification(ctx context.Context, in VerificationInput, deps VerificationDeps) (VerificationIssue, error) {
	normalizeVerificationDeps(&deps)

	if deps.TakeCaptcha == nil || deps.Classify == nil || deps.Send == nil || deps.PutOtp == nil ||
		deps.GenerateCode == nil || deps.RenderMessage == nil || deps.EffectiveMinutes == nil {
		return VerificationIssue{}, deps.Errors.EngineNotReady
	}

	identity := in.Identity
	tenancy := in.Tenancy
	event := deps.Events.VerificationRequest

	if in.SessionBound {
		id, err := sessionIdentity(ctx, in.SessionKey, event, deps)
		if err != nil {
			return VerificationIssue{}, err
		}
		identity = id
	}

	captcha, ok := deps.TakeCaptcha(in.SessionKey)
	if !ok || !deps.CaptchaMatches(captcha.Text, in.CaptchaInput) {
		reason := "mismatch"
		if !ok {
			reason = "absent"
		}
		deps.MetricInc(deps.Metrics.CaptchaMismatch)
		deps.EmitAudit(ctx, event, false, in.SessionKey, tenancy, 0, "", deps.Errors.CaptchaMismatch, func() map[string]string {
			return map[string]string{"reason": "captcha_" + reason}
		})
		return VerificationIssue{}, deps.Errors.CaptchaMismatch
	}

	if in.RequireIdentityLookup && !in.SessionBound {
		if deps.FindIdentity == nil {
			return VerificationIssue{}, deps.Errors.EngineNotReady
		}
		if err := deps.FindIdentity(ctx, identity, tenancy); err != nil {
			reason := "not_found"
			if !deps.IsDirectoryNotFound(err) {
				reason = "lookup_error"
				deps.Logger.ErrorContext(ctx, "directory lookup failed",
					slog.Any("error", errors.Join(deps.Errors.InternalLookup, err)),
					slog.String("tenancy", tenancy),
				)
			}
			deps.MetricInc(deps.Metrics.IdentityNotFound)
			deps.EmitAudit(ctx, event, false, in.SessionKey, tenancy, 0, "", deps.Errors.IdentityNotFound, func() map[string]string {
				return map[string]string{"reason": reason}
			})
			return VerificationIssue{}, deps.Errors.IdentityNotFound
		}
	}

	address, channel, ok := deps.Classify(identity)
	if !ok {
		deps.MetricInc(deps.Metrics.InvalidIdentity)
		deps.EmitAudit(ctx, event, false, in.SessionKey, tenancy, 0, "", deps.Errors.InvalidIdentityFormat, nil)
		return VerificationIssue{}, deps.Errors.InvalidIdentityFormat
	}

	messageType := deps.ResolveMessageType(in.MessageType)
	minutes := deps.EffectiveMinutes(messageType)
	code := deps.GenerateCode()
	now := deps.Now()
	expiresAt := now.Add(time.Duration(minutes) * time.Minute)

	subject, body, err := deps.RenderMessage(messageType, code, minutes)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "render verification message failed",
			slog.Any("error", err),
			slog.String("message_type", messageType),
		)
		deps.MetricInc(deps.Metrics.DeliveryFailed)
		deps.EmitAudit(ctx, event, false, in.SessionKey, tenancy, channel, "", deps.Errors.DeliveryFailed, func() map[string]string {
			return map[string]string{"reason": "render_failed"}
		})
		return VerificationIssue{}, deps.Errors.DeliveryFailed
	}

	deps.MetricInc(deps.Metrics.VerificationRequested)

	// A caller that goes away must not abort a send half-way; the outcome
	// decides whether the code is stored.
	sendCtx := context.WithoutCancel(ctx)
	if deps.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, deps.SendTimeout)
		defer cancel()
	}

	started := time.Now()
	err = deps.Send(sendCtx, channel, address, subject, body)
	deps.ObserveSend(time.Since(started))

	if err != nil {
		mapped := deps.Errors.DeliveryFailed
		metric := deps.Metrics.DeliveryFailed
		if deps.IsNotifierUnavailable(err) {
			mapped = deps.Errors.ChannelUnavailable
			metric = deps.Metrics.ChannelUnavailable
		}
		deps.Logger.WarnContext(ctx, "verification code delivery failed",
			slog.Any("error", err),
			slog.Int("channel", int(channel)),
		)
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, event, false, in.SessionKey, tenancy, channel, "", mapped, nil)
		return VerificationIssue{}, mapped
	}

	challengeID := deps.NewChallengeID()
	deps.PutOtp(in.SessionKey, channel, stores.OTP{
		ID:          challengeID,
		Code:        code,
		Identity:    address,
		Channel:     channel,
		MessageType: messageType,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})

	deps.MetricInc(deps.Metrics.VerificationSent)
	deps.EmitAudit(ctx, event, true, in.SessionKey, tenancy, channel, challengeID, nil, func() map[string]string {
		return map[string]string{"message_type": messageType}
	})

	issue := VerificationIssue{
		Channel:   channel,
		ExpiresAt: expiresAt,
	}
	if deps.RevealCode {
		issue.RevealedCode = code
	}
	return issue, nil
}

// RunCheckVerification matches code against the live challenge of the
// identity's channel. Only a match consumes the challenge; an expired one is
// evicted; any other failure leaves it in place.
func RunCheckVerification(ctx context.Context, in CheckInput, deps VerificationDeps) error {
	normalizeVerificationDeps(&deps)

	if deps.Classify == nil || deps.MatchOtp == nil || deps.SetVerified == nil {
		return deps.Errors.EngineNotReady
	}

	identity := in.Identity
	event := deps.Events.VerificationCheck

	if in.SessionBound {
		id, err := sessionIdentity(ctx, in.SessionKey, event, deps)
		if err != nil {
			return err
		}
		identity = id
	}

	address, channel, ok := deps.Classify(identity)
	if !ok {
		deps.MetricInc(deps.Metrics.InvalidIdentity)
		deps.EmitAudit(ctx, event, false, in.SessionKey, "", 0, "", deps.Errors.InvalidIdentityFormat, nil)
		return deps.Errors.InvalidIdentityFormat
	}

	otp, outcome := deps.MatchOtp(in.SessionKey, channel, address, in.Code, deps.Now())
	if outcome != stores.Matched {
		if outcome == stores.MatchExpired {
			deps.MetricInc(deps.Metrics.VerificationExpired)
		}
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, event, false, in.SessionKey, "", channel, otp.ID, deps.Errors.VerificationFailed, func() map[string]string {
			return map[string]string{"reason": outcome.String()}
		})
		return deps.Errors.VerificationFailed
	}

	if err := deps.SetVerified(ctx, in.SessionKey, address, channel, deps.Now()); err != nil {
		restored := false
		if deps.RestoreOtp != nil {
			restored = deps.RestoreOtp(in.SessionKey, channel, otp, deps.Now())
		}
		deps.Logger.ErrorContext(ctx, "record verified mark failed",
			slog.Any("error", err),
			slog.Bool("challenge_restored", restored),
		)
		deps.MetricInc(deps.Metrics.SessionUnavailable)
		deps.EmitAudit(ctx, event, false, in.SessionKey, "", channel, otp.ID, deps.Errors.SessionUnavailable, nil)
		return deps.Errors.SessionUnavailable
	}

	deps.MetricInc(deps.Metrics.VerificationSuccess)
	deps.EmitAudit(ctx, event, true, in.SessionKey, "", channel, otp.ID, nil, nil)
	return nil
}

func sessionIdentity(ctx context.Context, sessionKey, event string, deps VerificationDeps) (string, error) {
	if deps.SessionIdentity == nil {
		return "", deps.Errors.EngineNotReady
	}
	id, ok, err := deps.SessionIdentity(ctx, sessionKey)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "read session identity failed", slog.Any("error", err))
		deps.MetricInc(deps.Metrics.SessionUnavailable)
		deps.EmitAudit(ctx, event, false, sessionKey, "", 0, "", deps.Errors.SessionUnavailable, nil)
		return "", deps.Errors.SessionUnavailable
	}
	if !ok || id == "" {
		deps.MetricInc(deps.Metrics.IdentityRequired)
		deps.EmitAudit(ctx, event, false, sessionKey, "", 0, "", deps.Errors.IdentityRequired, nil)
		return "", deps.Errors.IdentityRequired
	}
	return id, nil
}

func normalizeVerificationDeps(deps *VerificationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CaptchaMatches == nil {
		deps.CaptchaMatches = func(expected, input string) bool { return expected == input }
	}
	if deps.IsDirectoryNotFound == nil {
		deps.IsDirectoryNotFound = func(error) bool { return false }
	}
	if deps.IsNotifierUnavailable == nil {
		deps.IsNotifierUnavailable = func(error) bool { return false }
	}
	if deps.ResolveMessageType == nil {
		deps.ResolveMessageType = func(mt string) string { return mt }
	}
	if deps.NewChallengeID == nil {
		deps.NewChallengeID = func() string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveSend == nil {
		deps.ObserveSend = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, uint8, string, error, func() map[string]string) {}
	}
}
