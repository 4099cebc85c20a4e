// Package internal contains helper utilities that are intentionally private to goVerify,
// most importantly the code generator used for captcha text and verification codes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - stores: the in-memory, per-session challenge store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goVerify API.
//   - Be imported by any package outside the goVerify module.
package internal
