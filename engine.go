package goVerify

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goVerify/internal"
	"github.com/MrEthical07/goVerify/internal/audit"
	"github.com/MrEthical07/goVerify/internal/stores"
	"github.com/MrEthical07/goVerify/jwt"
)

// Engine issues captchas and verification codes and checks them. It is safe
// for concurrent use after Builder.Build.
type Engine struct {
	config    Config
	store     *stores.ChallengeStore
	codes     *internal.CodeGenerator
	router    *DispatchRouter
	notifier  Notifier
	directory DirectoryLookup
	renderer  CaptchaImageRenderer
	facts     SessionFacts
	attest    *jwt.Manager
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time

	janitorStop chan struct{}
	janitorDone chan struct{}
	closed      atomic.Bool
	closeOnce   sync.Once
}

// Close stops the janitor and drains pending audit events. Every operation
// returns ErrEngineNotReady afterwards. Close is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.janitorStop != nil {
			close(e.janitorStop)
			<-e.janitorDone
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return emptySnapshot()
	}
	s := e.metrics.Snapshot()
	s.Audit = e.audit.Stats()
	return s
}

// Classify reports how identity would be routed without sending anything.
func (e *Engine) Classify(identity string) Destination {
	if e == nil || e.router == nil {
		return Destination{Kind: DestinationInvalid}
	}
	return e.router.Classify(identity)
}

// EndSession removes every challenge held for sessionKey. Session owners call
// it when the session is destroyed.
func (e *Engine) EndSession(sessionKey string) {
	if e == nil || e.store == nil || sessionKey == "" {
		return
	}
	e.store.Drop(sessionKey)
	e.emitAudit(context.Background(), auditEventSessionEnd, true, sessionKey, "", ChannelUnknown, "", nil, nil)
}

// Verified returns the session's verified mark. ok is false when the session
// has not proved an identity.
func (e *Engine) Verified(ctx context.Context, sessionKey string) (VerifiedMark, bool, error) {
	if !e.ready() || e.facts == nil {
		return VerifiedMark{}, false, ErrEngineNotReady
	}
	mark, ok, err := e.facts.Verified(ctx, sessionKey)
	if err != nil {
		e.logger.ErrorContext(ctx, "read verified mark failed", slog.Any("error", err))
		e.metricInc(MetricSessionUnavailable)
		return VerifiedMark{}, false, ErrSessionUnavailable
	}
	if !ok || mark.Identity == "" {
		return VerifiedMark{}, false, nil
	}
	return mark, true, nil
}

// IssueAttestation signs a token stating which identity the session verified
// and when. The session must hold a VerifiedMark.
func (e *Engine) IssueAttestation(ctx context.Context, sessionKey string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if e.attest == nil {
		return "", ErrAttestationDisabled
	}
	if e.facts == nil {
		return "", ErrEngineNotReady
	}

	mark, ok, err := e.facts.Verified(ctx, sessionKey)
	if err != nil {
		e.logger.ErrorContext(ctx, "read verified mark failed", slog.Any("error", err))
		e.metricInc(MetricSessionUnavailable)
		e.emitAudit(ctx, auditEventAttestationIssue, false, sessionKey, "", ChannelUnknown, "", ErrSessionUnavailable, nil)
		return "", ErrSessionUnavailable
	}
	if !ok || mark.Identity == "" {
		e.emitAudit(ctx, auditEventAttestationIssue, false, sessionKey, "", ChannelUnknown, "", ErrNotVerified, nil)
		return "", ErrNotVerified
	}

	token, err := e.attest.Issue(jwt.Attestation{
		Identity:   mark.Identity,
		Channel:    mark.Channel.String(),
		VerifiedAt: mark.VerifiedAt,
		SessionRef: internal.Fingerprint(sessionKey),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "sign attestation failed", slog.Any("error", err))
		e.emitAudit(ctx, auditEventAttestationIssue, false, sessionKey, "", mark.Channel, "", ErrEngineNotReady, nil)
		if errors.Is(err, jwt.ErrSigningKeyMissing) {
			return "", ErrAttestationDisabled
		}
		return "", ErrEngineNotReady
	}

	e.metricInc(MetricAttestationIssued)
	e.emitAudit(ctx, auditEventAttestationIssue, true, sessionKey, "", mark.Channel, "", nil, nil)
	return token, nil
}

// AttestationManager returns the signer configured for attestations, or nil
// when attestations are disabled. Downstream handlers use it to verify tokens.
func (e *Engine) AttestationManager() *jwt.Manager {
	if e == nil {
		return nil
	}
	return e.attest
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && !e.closed.Load()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// captchaMatches compares in constant time. Surrounding whitespace in the
// input is ignored.
func (e *Engine) captchaMatches(expected, input string) bool {
	input = strings.TrimSpace(input)
	if expected == "" || input == "" {
		return false
	}
	if !e.config.Verification.CaptchaCaseSensitive {
		expected = strings.ToLower(expected)
		input = strings.ToLower(input)
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(input)) == 1
}

/*
====================================
JANITOR
====================================
*/

func (e *Engine) startJanitor(interval time.Duration) {
	e.janitorStop = make(chan struct{})
	e.janitorDone = make(chan struct{})

	go func() {
		defer close(e.janitorDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.sweep()
			case <-e.janitorStop:
				return
			}
		}
	}()
}

func (e *Engine) sweep() int {
	n := e.store.Sweep(e.now(), e.config.Store.CaptchaMaxAge)
	if n > 0 {
		e.metrics.Add(MetricChallengesSwept, uint64(n))
		e.logger.Debug("swept challenges", slog.Int("removed", n))
	}
	return n
}
