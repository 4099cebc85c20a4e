package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/spf13/viper"
)

// Config holds the service settings loaded from the environment.
type Config struct {
	// HTTPAddr is the listen address (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment. "production" turns on
	// goVerify production mode.
	Env string `mapstructure:"APP_ENV"`
	// RevealCode returns generated codes in /verification/send responses.
	// Must not be true when APP_ENV=production.
	RevealCode bool `mapstructure:"REVEAL_CODE"`

	// RedisAddr enables Redis-backed session facts; in-memory otherwise.
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`
	// SessionTTL is the idle lifetime of session facts and the cookie.
	SessionTTL    string `mapstructure:"SESSION_TTL"`
	SessionCookie string `mapstructure:"SESSION_COOKIE"`
	CookieSecure  bool   `mapstructure:"COOKIE_SECURE"`

	// DatabaseURL enables the Postgres directory for identity lookups.
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DirectoryTable string `mapstructure:"DIRECTORY_TABLE"`

	SMTPAddr     string `mapstructure:"SMTP_ADDR"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`

	SMSAPIKey  string `mapstructure:"SMS_API_KEY"`
	SMSBaseURL string `mapstructure:"SMS_BASE_URL"`
	SMSSender  string `mapstructure:"SMS_SENDER"`

	// AttestSigningMethod is "hs256" or "ed25519"; empty disables attestations.
	AttestSigningMethod string `mapstructure:"ATTEST_SIGNING_METHOD"`
	// AttestPrivateKey is the HS256 secret, or a PEM Ed25519 private key or a
	// path to one.
	AttestPrivateKey string `mapstructure:"ATTEST_PRIVATE_KEY"`
	// AttestPublicKey is a PEM Ed25519 public key or a path to one.
	AttestPublicKey string `mapstructure:"ATTEST_PUBLIC_KEY"`
	AttestTTL       string `mapstructure:"ATTEST_TTL"`
	AttestIssuer    string `mapstructure:"ATTEST_ISSUER"`
	AttestAudience  string `mapstructure:"ATTEST_AUDIENCE"`

	AuditEnabled bool   `mapstructure:"AUDIT_ENABLED"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then the environment. Env vars override .env.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore a missing .env

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("REVEAL_CODE", false)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PREFIX", "verify")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("SESSION_COOKIE", "verify_sid")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DIRECTORY_TABLE", "users")
	v.SetDefault("SMTP_ADDR", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_BASE_URL", "")
	v.SetDefault("SMS_SENDER", "")
	v.SetDefault("ATTEST_SIGNING_METHOD", "")
	v.SetDefault("ATTEST_PRIVATE_KEY", "")
	v.SetDefault("ATTEST_PUBLIC_KEY", "")
	v.SetDefault("ATTEST_TTL", "5m")
	v.SetDefault("ATTEST_ISSUER", "goverify")
	v.SetDefault("ATTEST_AUDIENCE", "")
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.RevealCode && cfg.Production() {
		return nil, errors.New("config: REVEAL_CODE must not be true when APP_ENV=production")
	}
	if _, err := parsePositiveDuration("SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.AttestSigningMethod) {
	case "", "hs256", "ed25519":
	default:
		return nil, fmt.Errorf("config: unsupported ATTEST_SIGNING_METHOD %q", cfg.AttestSigningMethod)
	}
	if cfg.AttestSigningMethod != "" {
		if _, err := parsePositiveDuration("ATTEST_TTL", cfg.AttestTTL); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionLifetime parses SessionTTL. Load has validated it.
func (c *Config) SessionLifetime() time.Duration {
	d, _ := parsePositiveDuration("SESSION_TTL", c.SessionTTL)
	return d
}

// EngineConfig maps the service settings onto goVerify.Config.
func (c *Config) EngineConfig() (goVerify.Config, error) {
	cfg := goVerify.DefaultConfig()
	cfg.Verification.RevealCode = c.RevealCode
	cfg.Security.ProductionMode = c.Production()
	cfg.Audit.Enabled = c.AuditEnabled

	method := strings.ToLower(c.AttestSigningMethod)
	if method == "" {
		return cfg, nil
	}

	ttl, err := parsePositiveDuration("ATTEST_TTL", c.AttestTTL)
	if err != nil {
		return goVerify.Config{}, err
	}
	priv, err := keyMaterial(c.AttestPrivateKey)
	if err != nil {
		return goVerify.Config{}, fmt.Errorf("config: ATTEST_PRIVATE_KEY: %w", err)
	}
	pub, err := keyMaterial(c.AttestPublicKey)
	if err != nil {
		return goVerify.Config{}, fmt.Errorf("config: ATTEST_PUBLIC_KEY: %w", err)
	}

	cfg.Attestation.Enabled = true
	cfg.Attestation.SigningMethod = method
	cfg.Attestation.TTL = ttl
	cfg.Attestation.PrivateKey = priv
	cfg.Attestation.PublicKey = pub
	cfg.Attestation.Issuer = c.AttestIssuer
	cfg.Attestation.Audience = c.AttestAudience
	return cfg, nil
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

// keyMaterial returns inline PEM or secret values as-is and reads anything
// that names an existing file.
func keyMaterial(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "-----BEGIN") {
		return []byte(raw), nil
	}
	if st, err := os.Stat(raw); err == nil && !st.IsDir() {
		return os.ReadFile(raw)
	}
	return []byte(raw), nil
}
