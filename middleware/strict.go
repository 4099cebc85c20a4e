package middleware

import (
	"context"
	"errors"
	"net/http"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/jwt"
)

// RequireChannel is RequireAttestation restricted to identities proved on
// channel ("email" or "sms"). Other valid attestations get 403.
func RequireChannel(parser AttestationParser, channel goVerify.Channel) func(http.Handler) http.Handler {
	want := channel.String()
	return guard(parser, func(a jwt.Attestation) bool {
		return a.Channel == want
	})
}

// VerifiedReader reads a session's verified mark. *goVerify.Engine satisfies it.
type VerifiedReader interface {
	Verified(ctx context.Context, sessionKey string) (goVerify.VerifiedMark, bool, error)
}

type markContextKey struct{}

// VerifiedMarkFromContext returns the mark admitted by RequireVerifiedSession.
func VerifiedMarkFromContext(ctx context.Context) (goVerify.VerifiedMark, bool) {
	m, ok := ctx.Value(markContextKey{}).(goVerify.VerifiedMark)
	return m, ok
}

// RequireVerifiedSession admits requests whose session holds a verified mark.
// sessionKey extracts the session key from the request; an empty key is
// rejected. Session facts outages answer 503.
func RequireVerifiedSession(reader VerifiedReader, sessionKey func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reader == nil || sessionKey == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			key := sessionKey(r)
			if key == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			mark, ok, err := reader.Verified(r.Context(), key)
			switch {
			case errors.Is(err, goVerify.ErrSessionUnavailable):
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			case err != nil || !ok:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), markContextKey{}, mark)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
