package goVerify

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goVerify/internal"
	"github.com/MrEthical07/goVerify/internal/audit"
	"github.com/MrEthical07/goVerify/internal/stores"
	"github.com/MrEthical07/goVerify/jwt"
)

// Builder assembles an Engine. A Builder is single-use: Build may succeed
// only once.
type Builder struct {
	config Config

	notifier  Notifier
	directory DirectoryLookup
	renderer  CaptchaImageRenderer
	facts     SessionFacts
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	codeSource internal.IntN

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithNotifier sets the code delivery capability. Required.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithDirectory sets the lookup used when a request asks for
// RequireIdentityLookup. Without it such requests fail with ErrEngineNotReady.
func (b *Builder) WithDirectory(d DirectoryLookup) *Builder {
	b.directory = d
	return b
}

// WithCaptchaRenderer sets the captcha image renderer. Required.
func (b *Builder) WithCaptchaRenderer(r CaptchaImageRenderer) *Builder {
	b.renderer = r
	return b
}

// WithSessionFacts sets the session facts used by the session-bound
// operations, verified marks, and attestations. Required.
func (b *Builder) WithSessionFacts(f SessionFacts) *Builder {
	b.facts = f
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for challenge timestamps and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// withCodeSource replaces the random source of the code generator. Tests only.
func (b *Builder) withCodeSource(intn internal.IntN) *Builder {
	b.codeSource = intn
	return b
}

// Build validates the configuration and returns a running Engine. Callers
// must Close it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if b.renderer == nil {
		return nil, errors.New("captcha renderer required")
	}
	if b.facts == nil {
		return nil, errors.New("session facts required")
	}

	router, err := NewDispatchRouter(cfg.Verification)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "goVerify"))

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:    cfg,
		store:     stores.NewChallengeStore(),
		codes:     internal.NewCodeGeneratorWithSource(cfg.Verification.CaptchaAlphabet, b.codeSource),
		router:    router,
		notifier:  b.notifier,
		directory: b.directory,
		renderer:  b.renderer,
		facts:     b.facts,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		now:       now,
	}

	if cfg.Attestation.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Attestation.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Attestation.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Attestation.PrivateKey),
			PublicKey:     cloneBytes(cfg.Attestation.PublicKey),
			Issuer:        cfg.Attestation.Issuer,
			Audience:      cfg.Attestation.Audience,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		engine.attest = jm.WithClock(now)
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	if cfg.Store.SweepInterval > 0 {
		engine.startJanitor(cfg.Store.SweepInterval)
	}

	b.built = true

	return engine, nil
}
