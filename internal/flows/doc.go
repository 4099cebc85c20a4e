// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunIssueCaptcha, RunRequestVerification,
// RunCheckVerification) accepts a typed dependency struct and returns results
// without side effects beyond those dependencies, so flows are unit-tested with
// plain function fakes and the Engine type stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate the challenge store, router, notifier, directory,
// session facts, audit dispatcher, and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goVerify (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
//   - Log verification codes or captcha text.
package flows
