package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goVerify/jwt"
)

// AttestationParser verifies an attestation token. *jwt.Manager satisfies it.
type AttestationParser interface {
	Parse(token string) (*jwt.AttestationClaims, error)
}

type attestationContextKey struct{}

// AttestationFromContext returns the attestation admitted by RequireAttestation
// or RequireChannel.
func AttestationFromContext(ctx context.Context) (jwt.Attestation, bool) {
	a, ok := ctx.Value(attestationContextKey{}).(jwt.Attestation)
	return a, ok
}

// RequireAttestation rejects requests without a valid "Authorization: Bearer"
// attestation with 401.
func RequireAttestation(parser AttestationParser) func(http.Handler) http.Handler {
	return guard(parser, func(jwt.Attestation) bool { return true })
}

func guard(parser AttestationParser, admit func(jwt.Attestation) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parser == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := parser.Parse(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			att := claims.Attestation()
			if !admit(att) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), attestationContextKey{}, att)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
