package goVerify

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// Config holds every engine setting. Build a Config with DefaultConfig, adjust
// it, and pass it to Builder.WithConfig; the engine keeps its own copy.
type Config struct {
	Verification VerificationConfig
	Store        StoreConfig
	Attestation  AttestationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Security     SecurityConfig
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls code and captcha generation, message copy, and
// code lifetimes.
type VerificationConfig struct {
	CodeLength           int
	CaptchaLength        int
	CaptchaAlphabet      string
	CaptchaCaseSensitive bool

	// RevealCode returns the generated code to the caller in IssueResult.
	// Development only; rejected in production unless
	// Security.AllowRevealInProduction is set.
	RevealCode bool

	ExpiryMinutesByMessageType map[MessageType]int
	DefaultMessageType         MessageType

	// Templates are text/template sources keyed by message type. Templates
	// see .Code and .Minutes.
	Templates map[MessageType]MessageTemplate

	// PhonePattern is the regular expression a phone identity must match in
	// full. Emails are checked separately.
	PhonePattern string

	// SendTimeout bounds a single Notifier.Send. Zero leaves the bound to the
	// notifier.
	SendTimeout time.Duration
}

// MessageTemplate is the subject and body copy for one message type. SMS
// delivery uses the body only.
type MessageTemplate struct {
	Subject string
	Body    string
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls the background janitor of the in-memory challenge store.
type StoreConfig struct {
	// SweepInterval is how often expired challenges are evicted. Zero
	// disables the janitor; expired entries are then only evicted lazily.
	SweepInterval time.Duration
	// CaptchaMaxAge, when positive, lets a sweep evict captchas older than
	// it. Zero keeps a captcha until it is replaced, consumed, or the
	// session ends.
	CaptchaMaxAge time.Duration
}

/*
====================================
ATTESTATION CONFIG
====================================
*/

// AttestationConfig controls signed verification attestations.
type AttestationConfig struct {
	Enabled       bool
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	ProductionMode          bool
	AllowRevealInProduction bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	defaultPhonePattern    = `^\+?[0-9][0-9 ()\-]{5,18}[0-9]$`
	defaultCaptchaAlphabet = "02345689"
)

// DefaultConfig returns the development defaults: 6-digit codes, 4-character
// captchas over "02345689", and per-message-type lifetimes.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Verification: VerificationConfig{
			CodeLength:           6,
			CaptchaLength:        4,
			CaptchaAlphabet:      defaultCaptchaAlphabet,
			CaptchaCaseSensitive: false,
			RevealCode:           false,
			ExpiryMinutesByMessageType: map[MessageType]int{
				MessageGeneric:        10,
				MessageRegistration:   15,
				MessagePasswordReset:  5,
				MessageIdentityChange: 10,
			},
			DefaultMessageType: MessageGeneric,
			Templates:          defaultTemplates(),
			PhonePattern:       defaultPhonePattern,
			SendTimeout:        15 * time.Second,
		},
		Store: StoreConfig{
			SweepInterval: time.Minute,
			CaptchaMaxAge: 0,
		},
		Attestation: AttestationConfig{
			Enabled:       false,
			TTL:           5 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "goverify",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func defaultTemplates() map[MessageType]MessageTemplate {
	return map[MessageType]MessageTemplate{
		MessageGeneric: {
			Subject: "Your verification code",
			Body:    "Your verification code is {{.Code}}. It expires in {{.Minutes}} minutes.",
		},
		MessageRegistration: {
			Subject: "Complete your registration",
			Body:    "Use code {{.Code}} to finish signing up. The code expires in {{.Minutes}} minutes.",
		},
		MessagePasswordReset: {
			Subject: "Password reset code",
			Body:    "Your password reset code is {{.Code}}. It expires in {{.Minutes}} minutes. If you did not ask to reset your password, ignore this message.",
		},
		MessageIdentityChange: {
			Subject: "Confirm your new contact",
			Body:    "Use code {{.Code}} to confirm this address. It expires in {{.Minutes}} minutes.",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Verification.ExpiryMinutesByMessageType = maps.Clone(cfg.Verification.ExpiryMinutesByMessageType)
	out.Verification.Templates = maps.Clone(cfg.Verification.Templates)
	out.Attestation.PrivateKey = cloneBytes(cfg.Attestation.PrivateKey)
	out.Attestation.PublicKey = cloneBytes(cfg.Attestation.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Build calls it; callers that
// load configuration from files can call it earlier to fail fast.
func (c *Config) Validate() error {
	v := c.Verification

	if v.CodeLength < 4 || v.CodeLength > 10 {
		return errors.New("Verification CodeLength must be between 4 and 10")
	}
	if v.CaptchaLength < 1 || v.CaptchaLength > 16 {
		return errors.New("Verification CaptchaLength must be between 1 and 16")
	}
	if err := validateAlphabet(v.CaptchaAlphabet, v.CaptchaCaseSensitive); err != nil {
		return err
	}
	if v.DefaultMessageType == "" {
		return errors.New("Verification DefaultMessageType must be set")
	}
	if len(v.ExpiryMinutesByMessageType) == 0 {
		return errors.New("Verification ExpiryMinutesByMessageType must not be empty")
	}
	for mt, minutes := range v.ExpiryMinutesByMessageType {
		if minutes <= 0 {
			return fmt.Errorf("Verification expiry for %q must be > 0", mt)
		}
	}
	if _, ok := v.ExpiryMinutesByMessageType[v.DefaultMessageType]; !ok {
		return errors.New("Verification DefaultMessageType needs an expiry")
	}
	if _, ok := v.Templates[v.DefaultMessageType]; !ok {
		return errors.New("Verification DefaultMessageType needs a template")
	}
	for mt, tpl := range v.Templates {
		if strings.TrimSpace(tpl.Body) == "" {
			return fmt.Errorf("Verification template %q has an empty body", mt)
		}
		if _, err := template.New("subject").Parse(tpl.Subject); err != nil {
			return fmt.Errorf("Verification template %q subject: %w", mt, err)
		}
		if _, err := template.New("body").Parse(tpl.Body); err != nil {
			return fmt.Errorf("Verification template %q body: %w", mt, err)
		}
	}
	if strings.TrimSpace(v.PhonePattern) == "" {
		return errors.New("Verification PhonePattern must be set")
	}
	if _, err := regexp.Compile(v.PhonePattern); err != nil {
		return fmt.Errorf("Verification PhonePattern: %w", err)
	}
	if v.SendTimeout < 0 {
		return errors.New("Verification SendTimeout must be >= 0")
	}

	if c.Store.SweepInterval < 0 {
		return errors.New("Store SweepInterval must be >= 0")
	}
	if c.Store.CaptchaMaxAge < 0 {
		return errors.New("Store CaptchaMaxAge must be >= 0")
	}

	if c.Attestation.Enabled {
		a := c.Attestation
		if a.TTL <= 0 {
			return errors.New("Attestation TTL must be > 0")
		}
		switch a.SigningMethod {
		case "ed25519":
			if len(a.PrivateKey) == 0 {
				return errors.New("ed25519 requires PrivateKey")
			}
			if len(a.PublicKey) == 0 {
				return errors.New("ed25519 requires PublicKey")
			}
		case "hs256":
			if len(a.PrivateKey) < 32 {
				return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
			}
		default:
			return errors.New("unsupported Attestation signing method")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode && v.RevealCode && !c.Security.AllowRevealInProduction {
		return errors.New("Verification RevealCode is not allowed in production")
	}

	return nil
}

func validateAlphabet(alphabet string, caseSensitive bool) error {
	if alphabet == "" {
		return errors.New("Verification CaptchaAlphabet must not be empty")
	}
	seen := make(map[rune]struct{}, len(alphabet))
	for _, r := range alphabet {
		key := r
		if !caseSensitive {
			key = unicode.ToLower(r)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("Verification CaptchaAlphabet repeats %q", r)
		}
		seen[key] = struct{}{}
	}
	if len(seen) < 2 {
		return errors.New("Verification CaptchaAlphabet needs at least 2 distinct characters")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a setting that is valid but worth a second look.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports risky but valid settings. It never fails.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	v := c.Verification

	if v.RevealCode {
		ws = append(ws, LintWarning{Code: "reveal_code_enabled", Message: "verification codes are returned to callers"})
	}
	if v.CodeLength < 6 {
		ws = append(ws, LintWarning{Code: "code_short", Message: "codes shorter than 6 digits are easy to guess within the expiry window"})
	}
	if v.CaptchaLength < 4 {
		ws = append(ws, LintWarning{Code: "captcha_short", Message: "captchas shorter than 4 characters are weak"})
	}
	for mt, minutes := range v.ExpiryMinutesByMessageType {
		if minutes > 30 {
			ws = append(ws, LintWarning{Code: "expiry_long", Message: fmt.Sprintf("codes for %q live longer than 30 minutes", mt)})
			break
		}
	}
	if c.Store.SweepInterval == 0 {
		ws = append(ws, LintWarning{Code: "janitor_disabled", Message: "abandoned challenges are never evicted"})
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		ws = append(ws, LintWarning{Code: "audit_blocking", Message: "a slow audit sink will block verification requests"})
	}
	if !c.Security.ProductionMode {
		ws = append(ws, LintWarning{Code: "non_production", Message: "ProductionMode is off"})
	}
	return ws
}
