package goVerify

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goVerify/internal/audit"
)

// AuditEvent is one audit record of a challenge lifecycle step. It carries a
// fingerprint of the session key, never the key itself, and never a code or
// captcha text.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// AuditStats reports the audit dispatcher's delivered, dropped and pending
// events. It is part of MetricsSnapshot.
type AuditStats = audit.Stats

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	SlogSink       = audit.SlogSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
