package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	mrand "math/rand/v2"
	"strings"
)

// DigitAlphabet is the alphabet used for numeric verification codes.
const DigitAlphabet = "0123456789"

// IntN returns a uniformly distributed value in [0, n).
type IntN func(n int) int

// CodeGenerator draws captcha text and numeric codes. It holds no mutable
// state and is safe to share across goroutines.
type CodeGenerator struct {
	captcha []rune
	intn    IntN
}

// NewCodeGenerator returns a generator backed by crypto/rand.
func NewCodeGenerator(captchaAlphabet string) *CodeGenerator {
	return NewCodeGeneratorWithSource(captchaAlphabet, SecureIntN)
}

// NewCodeGeneratorWithSource returns a generator drawing from intn. Only tests
// should pass anything other than SecureIntN.
func NewCodeGeneratorWithSource(captchaAlphabet string, intn IntN) *CodeGenerator {
	if intn == nil {
		intn = SecureIntN
	}
	return &CodeGenerator{
		captcha: []rune(captchaAlphabet),
		intn:    intn,
	}
}

// CaptchaText returns length characters drawn from the captcha alphabet.
func (g *CodeGenerator) CaptchaText(length int) string {
	return g.draw(g.captcha, length)
}

// NumericCode returns length decimal digits.
func (g *CodeGenerator) NumericCode(length int) string {
	return g.draw([]rune(DigitAlphabet), length)
}

func (g *CodeGenerator) draw(set []rune, length int) string {
	if length <= 0 || len(set) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		idx := g.intn(len(set))
		if idx < 0 || idx >= len(set) {
			idx = SecureIntN(len(set))
		}
		b.WriteRune(set[idx])
	}
	return b.String()
}

// SecureIntN draws from crypto/rand. If the OS source fails it falls back to
// the runtime-seeded ChaCha8 generator of math/rand/v2, never a fixed seed.
func SecureIntN(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return mrand.IntN(n)
	}
	return int(v.Int64())
}

// Fingerprint returns a short, non-reversible reference for an opaque secret
// such as a session key, suitable for audit records and log lines.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:9])
}
