package goVerify_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/captcha"
	"github.com/MrEthical07/goVerify/directory"
	"github.com/MrEthical07/goVerify/notify"
	"github.com/MrEthical07/goVerify/session"
)

// ExampleNew builds an engine from the bundled adapters.
func ExampleNew() {
	engine, err := goVerify.New().
		WithNotifier(notify.NewMux().Handle(goVerify.ChannelEmail, notify.LogNotifier{})).
		WithDirectory(directory.NewMemoryDirectory()).
		WithCaptchaRenderer(captcha.NewDigitRenderer()).
		WithSessionFacts(session.NewMemoryFacts()).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

// ExampleEngine_RequestVerification shows the error classes a handler maps.
func ExampleEngine_RequestVerification() {
	var engine *goVerify.Engine
	_, err := engine.RequestVerification(context.Background(), "session-key", goVerify.VerificationRequest{
		Identity:     "alice@example.com",
		CaptchaInput: "0234",
	})
	switch {
	case errors.Is(err, goVerify.ErrCaptchaMismatch), errors.Is(err, goVerify.ErrInvalidIdentityFormat):
		// client error
	case errors.Is(err, goVerify.ErrChannelUnavailable), errors.Is(err, goVerify.ErrDeliveryFailed):
		// retry later
	}
}

func ExampleEngine_Classify() {
	engine, err := goVerify.New().
		WithNotifier(notify.LogNotifier{}).
		WithCaptchaRenderer(captcha.NewDigitRenderer()).
		WithSessionFacts(session.NewMemoryFacts()).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()

	d := engine.Classify("+1 (555) 0100")
	fmt.Println(d.Channel(), d.Address)
	// Output: sms +15550100
}

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goVerify.New
	_ = goVerify.DefaultConfig

	var _ *goVerify.Engine
	var _ goVerify.Config
	var _ goVerify.IssueResult
	var _ goVerify.CaptchaImage
	var _ goVerify.VerifiedMark
	var _ goVerify.AuditSink

	var _ goVerify.Notifier = notify.NewMux()
	var _ goVerify.DirectoryLookup = directory.NewMemoryDirectory()
	var _ goVerify.CaptchaImageRenderer = captcha.NewDigitRenderer()
	var _ goVerify.SessionFacts = session.NewMemoryFacts()

	for _, err := range []error{
		goVerify.ErrIdentityRequired,
		goVerify.ErrCaptchaMismatch,
		goVerify.ErrIdentityNotFound,
		goVerify.ErrInvalidIdentityFormat,
		goVerify.ErrChannelUnavailable,
		goVerify.ErrDeliveryFailed,
		goVerify.ErrVerificationFailed,
		goVerify.ErrRenderFailed,
	} {
		if err == nil {
			t.Fatal("nil sentinel")
		}
	}
}
