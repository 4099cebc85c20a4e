// Package middleware exposes HTTP middleware that admits requests carrying
// proof of a completed verification.
//
// # Guards
//
//   - [RequireAttestation] verifies a bearer attestation token. No I/O.
//   - [RequireChannel] additionally pins the channel the identity was proved on.
//   - [RequireVerifiedSession] reads the verified mark from the engine's
//     session facts.
//
// Admitted requests carry the attestation or mark in their context.
//
// # What this package must NOT do
//
//   - Issue attestations or write session facts.
//   - Reveal why a request was rejected beyond the status code.
package middleware
