package goVerify

import (
	"context"

	internalflows "github.com/MrEthical07/goVerify/internal/flows"
)

// IssueCaptcha generates captcha text for the session, replacing any earlier
// captcha, and renders it. On ErrRenderFailed no image is returned.
//
// CaptchaImage.Text is returned for in-process callers such as tests and
// accessibility fallbacks. HTTP handlers must send only the image.
func (e *Engine) IssueCaptcha(ctx context.Context, sessionKey string) (CaptchaImage, error) {
	if !e.ready() {
		return CaptchaImage{}, ErrEngineNotReady
	}

	text, img, err := internalflows.RunIssueCaptcha(ctx, sessionKey, e.captchaFlowDeps())
	if err != nil {
		return CaptchaImage{}, err
	}

	return CaptchaImage{
		Text:        text,
		Image:       img,
		ContentType: e.renderer.ContentType(),
	}, nil
}

func (e *Engine) captchaFlowDeps() internalflows.CaptchaDeps {
	length := e.config.Verification.CaptchaLength

	deps := internalflows.CaptchaDeps{
		Now:    e.now,
		Logger: e.logger,
		GenerateText: func() string {
			return e.codes.CaptchaText(length)
		},
		PutCaptcha: e.store.PutCaptcha,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: func(ctx context.Context, event string, success bool, sessionKey string, err error) {
			e.emitAudit(ctx, event, success, sessionKey, "", ChannelUnknown, "", err, nil)
		},
		Event: auditEventCaptchaIssue,
		Metrics: internalflows.CaptchaMetrics{
			CaptchaIssued:       int(MetricCaptchaIssued),
			CaptchaRenderFailed: int(MetricCaptchaRenderFailed),
		},
		Errors: internalflows.CaptchaErrors{
			EngineNotReady: ErrEngineNotReady,
			RenderFailed:   ErrRenderFailed,
		},
	}
	if e.renderer != nil {
		deps.Render = e.renderer.Render
	}
	return deps
}
