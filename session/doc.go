// Package session provides goVerify.SessionFacts implementations: the identity
// a session owner established and the VerifiedMark the engine records after a
// successful code check.
//
// # Binary encoding
//
// Verified marks are stored in Redis in a compact versioned binary format.
// The encoder is append-only: new versions add fields but never reinterpret
// old ones.
//
// # Architecture boundaries
//
// This package owns [RedisFacts], [MemoryFacts] and the mark codec. It does
// NOT store captchas or verification codes; those never leave the engine's
// memory.
//
// # What this package must NOT do
//
//   - Be imported by goVerify (no import cycles).
//   - Store codes, captcha text, or anything derived from them.
package session
