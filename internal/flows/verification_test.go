package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/internal/stores"
)

var (
	errNotReady        = errors.New("not ready")
	errIdentityReq     = errors.New("identity required")
	errCaptcha         = errors.New("captcha mismatch")
	errNotFound        = errors.New("identity not found")
	errFormat          = errors.New("invalid format")
	errChannel         = errors.New("channel unavailable")
	errDelivery        = errors.New("delivery failed")
	errFailed          = errors.New("verification failed")
	errSession         = errors.New("session unavailable")
	errLookup          = errors.New("lookup")
	errNotifierUnavail = errors.New("notifier unavailable")
	errDirNotFound     = errors.New("dir not found")
)

type flowHarness struct {
	store     *stores.ChallengeStore
	sent      []string
	sendErr   error
	sendCtxOK bool
	findErr   error
	found     int
	facts     map[string]string
	factsErr  error
	setErr    error
	verified  map[string]string
	now       time.Time
	audits    []string
}

func newFlowHarness() *flowHarness {
	return &flowHarness{
		store:    stores.NewChallengeStore(),
		facts:    map[string]string{},
		verified: map[string]string{},
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (h *flowHarness) deps() VerificationDeps {
	return VerificationDeps{
		Now: func() time.Time { return h.now },
		SessionIdentity: func(_ context.Context, key string) (string, bool, error) {
			if h.factsErr != nil {
				return "", false, h.factsErr
			}
			id, ok := h.facts[key]
			return id, ok, nil
		},
		SetVerified: func(_ context.Context, key, identity string, _ uint8, _ time.Time) error {
			if h.setErr != nil {
				return h.setErr
			}
			h.verified[key] = identity
			return nil
		},
		TakeCaptcha:    h.store.TakeCaptcha,
		CaptchaMatches: strings.EqualFold,
		FindIdentity: func(context.Context, string, string) error {
			h.found++
			return h.findErr
		},
		IsDirectoryNotFound: func(err error) bool { return errors.Is(err, errDirNotFound) },
		Classify: func(identity string) (string, uint8, bool) {
			switch {
			case strings.Contains(identity, "@"):
				return identity, 1, true
			case strings.HasPrefix(identity, "+"):
				return identity, 2, true
			default:
				return "", 0, false
			}
		},
		EffectiveMinutes: func(string) int { return 10 },
		RenderMessage: func(_ string, code string, minutes int) (string, string, error) {
			return "subject", "code " + code, nil
		},
		Send: func(ctx context.Context, _ uint8, address, _, _ string) error {
			h.sendCtxOK = ctx.Err() == nil
			if h.sendErr != nil {
				return h.sendErr
			}
			h.sent = append(h.sent, address)
			return nil
		},
		IsNotifierUnavailable: func(err error) bool { return errors.Is(err, errNotifierUnavail) },
		GenerateCode:          func() string { return "482913" },
		NewChallengeID:        func() string { return "id-1" },
		PutOtp:                h.store.PutOtp,
		MatchOtp:              h.store.MatchAndConsumeOtp,
		RestoreOtp:            h.store.RestoreOtp,
		EmitAudit: func(_ context.Context, event string, success bool, _, _ string, _ uint8, _ string, _ error, md func() map[string]string) {
			entry := event
			if md != nil {
				entry += ":" + md()["reason"]
			}
			h.audits = append(h.audits, entry)
		},
		Events: VerificationEvents{VerificationRequest: "request", VerificationCheck: "check"},
		Errors: VerificationErrors{
			EngineNotReady:        errNotReady,
			IdentityRequired:      errIdentityReq,
			CaptchaMismatch:       errCaptcha,
			IdentityNotFound:      errNotFound,
			InvalidIdentityFormat: errFormat,
			ChannelUnavailable:    errChannel,
			DeliveryFailed:        errDelivery,
			VerificationFailed:    errFailed,
			SessionUnavailable:    errSession,
			InternalLookup:        errLookup,
		},
	}
}

func TestRequestRequiresReadyDeps(t *testing.T) {
	_, err := RunRequestVerification(context.Background(), VerificationInput{}, VerificationDeps{
		Errors: VerificationErrors{EngineNotReady: errNotReady},
	})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestRequestStoresCodeAfterSend(t *testing.T) {
	h := newFlowHarness()
	h.store.PutCaptcha("s", stores.Captcha{Text: "abcd"})

	deps := h.deps()
	deps.RevealCode = true
	issue, err := RunRequestVerification(context.Background(), VerificationInput{
		SessionKey:   "s",
		Identity:     "user@example.com",
		CaptchaInput: "ABCD",
	}, deps)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if issue.RevealedCode != "482913" || issue.Channel != 1 {
		t.Fatalf("unexpected issue %+v", issue)
	}
	if !issue.ExpiresAt.Equal(h.now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", issue.ExpiresAt)
	}
	otp, ok := h.store.PeekOtp("s", 1)
	if !ok || otp.ID != "id-1" || otp.Identity != "user@example.com" {
		t.Fatalf("expected stored challenge, got %+v", otp)
	}
}

func TestRequestHidesCodeWithoutReveal(t *testing.T) {
	h := newFlowHarness()
	h.store.PutCaptcha("s", stores.Captcha{Text: "abcd"})

	issue, err := RunRequestVerification(context.Background(), VerificationInput{
		SessionKey: "s", Identity: "user@example.com", CaptchaInput: "abcd",
	}, h.deps())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if issue.RevealedCode != "" {
		t.Fatal("code must not be revealed")
	}
}

func TestRequestSendSurvivesCallerCancel(t *testing.T) {
	h := newFlowHarness()
	h.store.PutCaptcha("s", stores.Captcha{Text: "abcd"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunRequestVerification(ctx, VerificationInput{
		SessionKey: "s", Identity: "user@example.com", CaptchaInput: "abcd",
	}, h.deps())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !h.sendCtxOK {
		t.Fatal("send context must not inherit caller cancellation")
	}
}

func TestRequestSendErrors(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
		want    error
	}{
		{name: "unavailable", sendErr: errNotifierUnavail, want: errChannel},
		{name: "wrapped unavailable", sendErr: errors.Join(errors.New("smtp"), errNotifierUnavail), want: errChannel},
		{name: "failed", sendErr: errors.New("smtp 554"), want: errDelivery},
		{name: "timeout", sendErr: context.DeadlineExceeded, want: errDelivery},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newFlowHarness()
			h.sendErr = tc.sendErr
			h.store.PutCaptcha("s", stores.Captcha{Text: "abcd"})

			_, err := RunRequestVerification(context.Background(), VerificationInput{
				SessionKey: "s", Identity: "+15550100", CaptchaInput: "abcd",
			}, h.deps())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if _, ok := h.store.PeekOtp("s", 2); ok {
				t.Fatal("no challenge may be stored after a failed send")
			}
		})
	}
}

func TestRequestLookup(t *testing.T) {
	tests := []struct {
		name    string
		findErr error
		reason  string
	}{
		{name: "not found", findErr: errDirNotFound, reason: "not_found"},
		{name: "backend error", findErr: errors.New("connection refused"), reason: "lookup_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newFlowHarness()
			h.findErr = tc.findErr
			h.store.PutCaptcha("s", stores.Captcha{Text: "abcd"})

			_, err := RunRequestVerification(context.Background(), VerificationInput{
				SessionKey: "s", Identity: "user@example.com", CaptchaInput: "abcd", RequireIdentityLookup: true,
			}, h.deps())
			if !errors.Is(err, errNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			if len(h.sent) != 0 {
				t.Fatal("notifier must not be called")
			}
			last := h.audits[len(h.audits)-1]
			if last != "request:"+tc.reason {
				t.Fatalf("unexpected audit %q", last)
			}
		})
	}
}

func TestSessionBoundRequestChecksIdentityBeforeCaptcha(t *testing.T) {
	h := newFlowHarness()
	h.store.PutCaptcha("s", stores.Captcha{Text: "abcd"})

	_, err := RunRequestVerification(context.Background(), VerificationInput{
		SessionKey: "s", CaptchaInput: "abcd", SessionBound: true,
	}, h.deps())
	if !errors.Is(err, errIdentityReq) {
		t.Fatalf("expected identity required, got %v", err)
	}
	if _, ok := h.store.TakeCaptcha("s"); !ok {
		t.Fatal("captcha must not be consumed when identity is missing")
	}
}

func TestSessionBoundRequestSkipsLookup(t *testing.T) {
	h := newFlowHarness()
	h.facts["s"] = "user@example.com"
	h.store.PutCaptcha("s", stores.Captcha{Text: "abcd"})

	_, err := RunRequestVerification(context.Background(), VerificationInput{
		SessionKey: "s", CaptchaInput: "abcd", SessionBound: true, RequireIdentityLookup: true,
	}, h.deps())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if h.found != 0 {
		t.Fatal("session-bound request must not query the directory")
	}
	if len(h.sent) != 1 || h.sent[0] != "user@example.com" {
		t.Fatalf("unexpected sends %v", h.sent)
	}
}

func TestSessionFactsErrorMapsToSessionUnavailable(t *testing.T) {
	h := newFlowHarness()
	h.factsErr = errors.New("redis down")

	err := RunCheckVerification(context.Background(), CheckInput{SessionKey: "s", Code: "1", SessionBound: true}, h.deps())
	if !errors.Is(err, errSession) {
		t.Fatalf("expected session unavailable, got %v", err)
	}
}

func TestCheckOutcomes(t *testing.T) {
	h := newFlowHarness()
	deps := h.deps()
	h.store.PutOtp("s", 1, stores.OTP{ID: "id-1", Code: "482913", Identity: "user@example.com", ExpiresAt: h.now.Add(10 * time.Minute)})

	if err := RunCheckVerification(context.Background(), CheckInput{SessionKey: "s", Identity: "nope", Code: "482913"}, deps); !errors.Is(err, errFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if err := RunCheckVerification(context.Background(), CheckInput{SessionKey: "s", Identity: "other@example.com", Code: "482913"}, deps); !errors.Is(err, errFailed) {
		t.Fatalf("expected failure, got %v", err)
	}
	if err := RunCheckVerification(context.Background(), CheckInput{SessionKey: "s", Identity: "user@example.com", Code: "482913"}, deps); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if h.verified["s"] != "user@example.com" {
		t.Fatal("expected verified mark")
	}
	if err := RunCheckVerification(context.Background(), CheckInput{SessionKey: "s", Identity: "user@example.com", Code: "482913"}, deps); !errors.Is(err, errFailed) {
		t.Fatalf("expected replay failure, got %v", err)
	}
	if last := h.audits[len(h.audits)-1]; last != "check:absent" {
		t.Fatalf("unexpected audit %q", last)
	}
}

func TestCheckRestoresChallengeWhenMarkFails(t *testing.T) {
	h := newFlowHarness()
	h.setErr = errors.New("redis down")
	h.store.PutOtp("s", 1, stores.OTP{ID: "id-1", Code: "482913", Identity: "user@example.com", ExpiresAt: h.now.Add(10 * time.Minute)})

	err := RunCheckVerification(context.Background(), CheckInput{SessionKey: "s", Identity: "user@example.com", Code: "482913"}, h.deps())
	if !errors.Is(err, errSession) {
		t.Fatalf("expected session unavailable, got %v", err)
	}
	if _, ok := h.store.PeekOtp("s", 1); !ok {
		t.Fatal("challenge must be restored for a retry")
	}
}

func TestCheckWithoutSessionFactsLeavesChallenge(t *testing.T) {
	h := newFlowHarness()
	deps := h.deps()
	deps.SetVerified = nil
	h.store.PutOtp("s", 1, stores.OTP{ID: "id-1", Code: "482913", Identity: "user@example.com", ExpiresAt: h.now.Add(10 * time.Minute)})

	err := RunCheckVerification(context.Background(), CheckInput{SessionKey: "s", Identity: "user@example.com", Code: "482913"}, deps)
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected engine not ready, got %v", err)
	}
	if _, ok := h.store.PeekOtp("s", 1); !ok {
		t.Fatal("challenge must not be consumed without a place to record the mark")
	}
}

func TestIssueCaptchaFlow(t *testing.T) {
	store := stores.NewChallengeStore()
	renderErr := errors.New("render")
	deps := CaptchaDeps{
		GenerateText: func() string { return "0258" },
		PutCaptcha:   store.PutCaptcha,
		Render: func(context.Context, string) ([]byte, error) {
			return []byte{0xff, 0xd8}, nil
		},
		Errors: CaptchaErrors{EngineNotReady: errNotReady, RenderFailed: renderErr},
	}

	text, img, err := RunIssueCaptcha(context.Background(), "s", deps)
	if err != nil || text != "0258" || len(img) != 2 {
		t.Fatalf("unexpected result %q %v %v", text, img, err)
	}

	deps.Render = func(context.Context, string) ([]byte, error) { return nil, errors.New("font") }
	if _, img, err := RunIssueCaptcha(context.Background(), "s", deps); !errors.Is(err, renderErr) || img != nil {
		t.Fatalf("expected render failure without image, got %v %v", img, err)
	}

	if _, _, err := RunIssueCaptcha(context.Background(), "s", CaptchaDeps{Errors: CaptchaErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}
