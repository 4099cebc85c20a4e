// Package stores provides the in-memory, session-keyed challenge store that
// backs captcha and one-time code verification.
//
// # Design
//
// Each session key owns at most one captcha and at most one OTP per delivery
// channel. Entries sit in a fixed number of shards; each entry has its own
// mutex so every read-check-write on one key is a single critical section.
// Code comparison is constant-time. Emptied entries are unlinked immediately
// so the store never holds sessions without challenges.
//
// # Architecture boundaries
//
// This package owns storage and the atomicity of match-and-consume. It does NOT
// generate codes, talk to notifiers, or map outcomes to API errors; those
// belong to internal/flows and the root Engine.
//
// # What this package must NOT do
//
//   - Import goVerify or any sibling internal package.
//   - Perform I/O of any kind.
//   - Log or expose challenge codes.
package stores
