package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// verifier is the engine surface the HTTP layer needs.
type verifier interface {
	IssueCaptcha(ctx context.Context, sessionKey string) (goVerify.CaptchaImage, error)
	RequestVerification(ctx context.Context, sessionKey string, req goVerify.VerificationRequest) (goVerify.IssueResult, error)
	RequestVerificationForSession(ctx context.Context, sessionKey string, req goVerify.VerificationRequest) (goVerify.IssueResult, error)
	CheckVerification(ctx context.Context, sessionKey, identity, code string) error
	CheckVerificationForSession(ctx context.Context, sessionKey, code string) error
	IssueAttestation(ctx context.Context, sessionKey string) (string, error)
	EndSession(sessionKey string)
}

// sessionEraser drops everything recorded for a session key. Both session
// facts stores in the session package satisfy it.
type sessionEraser interface {
	Delete(ctx context.Context, sessionKey string) error
}

type server struct {
	engine  verifier
	facts   sessionEraser
	logger  *slog.Logger
	metrics http.Handler
	health  func(ctx context.Context) error

	cookieName   string
	cookieSecure bool
	cookieTTL    time.Duration
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(clientIP)

	r.Route("/verification", func(r chi.Router) {
		r.Get("/captcha", s.handleCaptcha)
		r.Post("/send", s.handleSend)
		r.Post("/send/session", s.handleSendSession)
		r.Post("/verify", s.handleVerify)
		r.Post("/verify/session", s.handleVerifySession)
		r.Post("/attest", s.handleAttest)
		r.Post("/end", s.handleEnd)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/healthz", s.handleHealth)

	return r
}

func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(goVerify.WithClientIP(r.Context(), host)))
	})
}

// sessionKey returns the session cookie value, minting one when absent.
func (s *server) sessionKey(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cookieTTL.Seconds()),
	})
	return key
}

func (s *server) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	key := s.sessionKey(w, r)
	img, err := s.engine.IssueCaptcha(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Content-Type", img.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Image)
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.FormValue("identity"))
	if identity == "" {
		s.writeJSON(w, http.StatusBadRequest, envelope{Error: &errorBody{Code: "BAD_REQUEST", Message: "identity is required"}})
		return
	}
	key := s.sessionKey(w, r)
	res, err := s.engine.RequestVerification(r.Context(), key, goVerify.VerificationRequest{
		Identity:              identity,
		Tenancy:               r.FormValue("tenancy_code"),
		CaptchaInput:          r.FormValue("captcha"),
		MessageType:           goVerify.MessageType(r.FormValue("type")),
		RequireIdentityLookup: true,
	})
	s.writeIssue(w, r, res, err)
}

func (s *server) handleSendSession(w http.ResponseWriter, r *http.Request) {
	key := s.sessionKey(w, r)
	res, err := s.engine.RequestVerificationForSession(r.Context(), key, goVerify.VerificationRequest{
		CaptchaInput: r.FormValue("captcha"),
		MessageType:  goVerify.MessageType(r.FormValue("type")),
	})
	s.writeIssue(w, r, res, err)
}

func (s *server) writeIssue(w http.ResponseWriter, r *http.Request, res goVerify.IssueResult, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"code":       res.RevealedCode,
		"channel":    res.Channel.String(),
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	}})
}

func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.FormValue("identity"))
	if identity == "" {
		s.writeJSON(w, http.StatusBadRequest, envelope{Error: &errorBody{Code: "BAD_REQUEST", Message: "identity is required"}})
		return
	}
	key := s.sessionKey(w, r)
	if err := s.engine.CheckVerification(r.Context(), key, identity, r.FormValue("verifyCode")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *server) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	key := s.sessionKey(w, r)
	if err := s.engine.CheckVerificationForSession(r.Context(), key, r.FormValue("verifyCode")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *server) handleAttest(w http.ResponseWriter, r *http.Request) {
	key := s.sessionKey(w, r)
	token, err := s.engine.IssueAttestation(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"token": token}})
}

func (s *server) handleEnd(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		MaxAge:   -1,
	})

	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.engine.EndSession(c.Value)
	if s.facts != nil {
		if err := s.facts.Delete(r.Context(), c.Value); err != nil {
			s.logger.ErrorContext(r.Context(), "delete session facts failed", slog.Any("error", err))
			s.writeError(w, r, goVerify.ErrSessionUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
			s.writeJSON(w, http.StatusServiceUnavailable, envelope{Error: &errorBody{Code: "UNAVAILABLE", Message: "dependency unavailable"}})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true})
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{goVerify.ErrIdentityRequired, http.StatusBadRequest, "IDENTITY_REQUIRED", ""},
	{goVerify.ErrCaptchaMismatch, http.StatusBadRequest, "CAPTCHA_MISMATCH", ""},
	{goVerify.ErrIdentityNotFound, http.StatusBadRequest, "IDENTITY_NOT_FOUND", ""},
	{goVerify.ErrInvalidIdentityFormat, http.StatusBadRequest, "INVALID_IDENTITY", ""},
	{goVerify.ErrVerificationFailed, http.StatusBadRequest, "VERIFICATION_FAILED", ""},
	{goVerify.ErrNotVerified, http.StatusForbidden, "NOT_VERIFIED", ""},
	{goVerify.ErrAttestationDisabled, http.StatusNotFound, "ATTESTATION_DISABLED", ""},
	{goVerify.ErrChannelUnavailable, http.StatusServiceUnavailable, "CHANNEL_UNAVAILABLE", ""},
	{goVerify.ErrDeliveryFailed, http.StatusBadGateway, "DELIVERY_FAILED", ""},
	{goVerify.ErrSessionUnavailable, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", ""},
	{goVerify.ErrRenderFailed, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"},
	{goVerify.ErrEngineNotReady, http.StatusServiceUnavailable, "UNAVAILABLE", ""},
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = m.err.Error()
			}
			s.writeJSON(w, m.status, envelope{Error: &errorBody{Code: m.code, Message: msg}})
			return
		}
	}
	s.logger.ErrorContext(r.Context(), "unmapped engine error", slog.Any("error", err))
	s.writeJSON(w, http.StatusInternalServerError, envelope{Error: &errorBody{Code: "INTERNAL_ERROR", Message: "internal error"}})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
