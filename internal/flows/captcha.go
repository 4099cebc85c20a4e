package flows

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goVerify/internal/stores"
)

type CaptchaMetrics struct {
	CaptchaIssued       int
	CaptchaRenderFailed int
}

type CaptchaErrors struct {
	EngineNotReady error
	RenderFailed   error
}

type CaptchaDeps struct {
	Now    func() time.Time
	Logger *slog.Logger

	GenerateText func() string
	PutCaptcha   func(string, stores.Captcha)
	Render       func(context.Context, string) ([]byte, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, sessionKey string, err error)

	Event   string
	Metrics CaptchaMetrics
	Errors  CaptchaErrors
}

// RunIssueCaptcha stores fresh captcha text for the session, replacing any
// earlier one, and renders it. A render failure leaves the text stored; the
// next issuance replaces it.
func RunIssueCaptcha(ctx context.Context, sessionKey string, deps CaptchaDeps) (string, []byte, error) {
	normalizeCaptchaDeps(&deps)

	if deps.GenerateText == nil || deps.PutCaptcha == nil || deps.Render == nil {
		return "", nil, deps.Errors.EngineNotReady
	}

	text := deps.GenerateText()
	deps.PutCaptcha(sessionKey, stores.Captcha{Text: text, CreatedAt: deps.Now()})

	img, err := deps.Render(ctx, text)
	if err != nil || len(img) == 0 {
		deps.Logger.ErrorContext(ctx, "captcha render failed", slog.Any("error", err))
		deps.MetricInc(deps.Metrics.CaptchaRenderFailed)
		deps.EmitAudit(ctx, deps.Event, false, sessionKey, deps.Errors.RenderFailed)
		return "", nil, deps.Errors.RenderFailed
	}

	deps.MetricInc(deps.Metrics.CaptchaIssued)
	deps.EmitAudit(ctx, deps.Event, true, sessionKey, nil)
	return text, img, nil
}

func normalizeCaptchaDeps(deps *CaptchaDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error) {}
	}
}
