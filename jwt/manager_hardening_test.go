package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "goverify"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	verifiedAt := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	token, err := m.Issue(Attestation{Identity: "user@example.com", Channel: "email", VerifiedAt: verifiedAt, SessionRef: "ref"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := claims.Attestation()
	if got.Identity != "user@example.com" || got.Channel != "email" || !got.VerifiedAt.Equal(verifiedAt) || got.SessionRef != "ref" {
		t.Fatalf("unexpected attestation %+v", got)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
}

func TestIssueRequiresIdentityAndKey(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, _ := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if _, err := m.Issue(Attestation{}); err == nil {
		t.Fatal("expected empty identity to fail")
	}

	verifyOnly, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := verifyOnly.Issue(Attestation{Identity: "a@b.co"}); err != ErrSigningKeyMissing {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AttestationClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "a@b.co", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "goverify",
		Audience:      "accounts",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	sign := func(c AttestationClaims) string {
		tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c)
		s, err := tok.SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	base := func(iss, aud string, exp time.Duration) AttestationClaims {
		return AttestationClaims{Channel: "sms", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "+15550100",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(exp)),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
	}

	if _, err := m.Parse(sign(base("goverify", "accounts", time.Minute))); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}
	if _, err := m.Parse(sign(base("other", "accounts", time.Minute))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(sign(base("goverify", "billing", time.Minute))); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.Parse(sign(base("goverify", "accounts", -15*time.Second))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Parse(sign(base("goverify", "accounts", -2*time.Minute))); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseRequiresExpiryAndSubject(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	noExp, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AttestationClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "a@b.co"}}).SignedString(secret)
	if _, err := m.Parse(noExp); err == nil {
		t.Fatal("expected token without exp to fail")
	}

	noSub, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AttestationClaims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}).SignedString(secret)
	if _, err := m.Parse(noSub); err == nil {
		t.Fatal("expected token without subject to fail")
	}
}

func TestWithClockControlsExpiry(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	base, _ := NewManager(Config{TTL: 5 * time.Minute, SigningMethod: MethodHS256, PrivateKey: secret})

	now := time.Now()
	m := base.WithClock(func() time.Time { return now })
	token, err := m.Issue(Attestation{Identity: "a@b.co", Channel: "email", VerifiedAt: now})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(6 * time.Minute)
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected token to be expired under the advanced clock")
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AttestationClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "a@b.co", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, err := m.Issue(Attestation{Identity: "a@b.co"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Parse(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, _ := newEdKeys(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero ttl", cfg: Config{SigningMethod: MethodEd25519, PublicKey: pub}},
		{name: "large leeway", cfg: Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, Leeway: time.Hour}},
		{name: "hs256 no key", cfg: Config{TTL: time.Minute, SigningMethod: MethodHS256}},
		{name: "ed25519 no public", cfg: Config{TTL: time.Minute, SigningMethod: MethodEd25519}},
		{name: "bad method", cfg: Config{TTL: time.Minute, SigningMethod: "rs256"}},
		{name: "kid outside set", cfg: Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, KeyID: "x", VerifyKeys: map[string][]byte{"y": pub}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
