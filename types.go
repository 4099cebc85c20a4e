package goVerify

import (
	"context"
	"time"
)

// Channel is the out-of-band delivery channel of a verification code.
type Channel uint8

const (
	ChannelUnknown Channel = iota
	ChannelEmail
	ChannelSMS
)

// String returns the lowercase channel name used in audit events and metrics.
func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelSMS:
		return "sms"
	default:
		return "unknown"
	}
}

// DestinationKind tags the result of classifying an identity.
type DestinationKind uint8

const (
	DestinationInvalid DestinationKind = iota
	DestinationEmail
	DestinationPhone
)

// Destination is the routing decision for an identity. Address is the
// normalized form the notifier delivers to; it is empty for Invalid.
type Destination struct {
	Kind    DestinationKind
	Address string
}

// Channel maps the destination kind to its delivery channel.
func (d Destination) Channel() Channel {
	switch d.Kind {
	case DestinationEmail:
		return ChannelEmail
	case DestinationPhone:
		return ChannelSMS
	default:
		return ChannelUnknown
	}
}

// MessageType selects the message copy and the code lifetime.
type MessageType string

const (
	MessageGeneric        MessageType = "generic"
	MessageRegistration   MessageType = "registration"
	MessagePasswordReset  MessageType = "password_reset"
	MessageIdentityChange MessageType = "identity_change"
)

// Message is what a Notifier delivers.
type Message struct {
	Channel     Channel
	Destination string
	Subject     string
	Body        string
}

// VerificationRequest carries the caller input for RequestVerification.
type VerificationRequest struct {
	Identity     string
	Tenancy      string
	CaptchaInput string
	MessageType  MessageType

	// RequireIdentityLookup makes the engine resolve Identity through the
	// DirectoryLookup before sending; unknown identities fail.
	RequireIdentityLookup bool
}

// IssueResult describes a successfully delivered code. RevealedCode is only
// set when Config.Verification.RevealCode is enabled.
type IssueResult struct {
	RevealedCode string
	Channel      Channel
	ExpiresAt    time.Time
}

// CaptchaImage is a freshly issued captcha. Text is for in-process callers
// only and must not be sent to the client.
type CaptchaImage struct {
	Text        string
	Image       []byte
	ContentType string
}

// UserRecord is the directory entry an identity resolved to.
type UserRecord struct {
	UserID  string
	Tenancy string
	Email   string
	Phone   string
}

// VerifiedMark records that the session proved control of Identity.
type VerifiedMark struct {
	Identity   string
	Channel    Channel
	VerifiedAt time.Time
}

// Notifier delivers a rendered message. It returns nil on delivery,
// ErrNotifierUnavailable when it has no transport for msg.Channel, and any
// other error for a failed attempt.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// DirectoryLookup resolves an identity within a tenancy. Implementations
// return ErrDirectoryNotFound for unknown identities.
type DirectoryLookup interface {
	Find(ctx context.Context, identity, tenancy string) (UserRecord, error)
}

// CaptchaImageRenderer draws captcha text into an image.
type CaptchaImageRenderer interface {
	Render(ctx context.Context, text string) ([]byte, error)
	ContentType() string
}

// SessionFacts is the engine's view of the external session: the identity
// established by its owner and the verified mark the engine records.
type SessionFacts interface {
	Identity(ctx context.Context, sessionKey string) (string, bool, error)
	SetVerified(ctx context.Context, sessionKey string, mark VerifiedMark) error
	Verified(ctx context.Context, sessionKey string) (VerifiedMark, bool, error)
}
