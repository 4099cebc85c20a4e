package goVerify

import "errors"

var (
	// ErrIdentityRequired is returned by the session-bound operations when the
	// session carries no identity.
	ErrIdentityRequired = errors.New("identity required")
	// ErrCaptchaMismatch is returned when no captcha was issued for the
	// session or the submitted text does not match it.
	ErrCaptchaMismatch = errors.New("captcha mismatch")
	// ErrIdentityNotFound is returned when a directory lookup was requested
	// and the identity could not be resolved.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidIdentityFormat is returned when an identity is neither a
	// syntactically valid email address nor a phone number.
	ErrInvalidIdentityFormat = errors.New("invalid identity format")
	// ErrChannelUnavailable means the notifier cannot deliver on the
	// identity's channel at all.
	ErrChannelUnavailable = errors.New("delivery channel unavailable")
	// ErrDeliveryFailed means the notifier attempted delivery and failed.
	// No challenge is stored.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrVerificationFailed covers every unsuccessful code check: absent,
	// expired, wrong code, or wrong identity.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrRenderFailed is returned when the captcha image could not be rendered.
	ErrRenderFailed = errors.New("captcha render failed")
	// ErrSessionUnavailable is returned when the session facts backend fails
	// while reading the session identity or recording a verified mark.
	ErrSessionUnavailable = errors.New("session facts unavailable")
	// ErrNotVerified is returned by IssueAttestation when the session holds no
	// verified mark.
	ErrNotVerified = errors.New("session not verified")
	// ErrAttestationDisabled is returned by IssueAttestation when no
	// attestation signer is configured.
	ErrAttestationDisabled = errors.New("attestation disabled")
	// ErrEngineNotReady is returned when a required collaborator is missing or
	// the engine has been closed.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrNotifierUnavailable is returned by a Notifier that has no transport
	// for the requested channel.
	ErrNotifierUnavailable = errors.New("notifier unavailable")
	// ErrDirectoryNotFound is returned by a DirectoryLookup when the identity
	// does not exist within the tenancy.
	ErrDirectoryNotFound = errors.New("directory: identity not found")

	ErrInvalidConfig = errors.New("invalid config")

	errInternalLookup = errors.New("identity lookup failed")
)
