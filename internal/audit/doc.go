// Package audit implements async event dispatching for challenge lifecycle steps.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, hashed session reference,
//     tenancy, channel, challenge id, and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine and flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goVerify or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
