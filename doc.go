// Package goVerify issues and checks the two short-lived challenges used to
// prove that a caller controls an email address or phone number and is not a
// script: a captcha, and a one-time code delivered by email or SMS.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goVerify is the public surface. It exposes [Engine], [Builder], [Config],
// the capability interfaces ([Notifier], [DirectoryLookup],
// [CaptchaImageRenderer], [SessionFacts]) and value types. Challenge storage,
// code generation, flow orchestration and audit dispatch live under internal/.
// Adapters for the capabilities live in sub-packages (notify, directory,
// captcha, session) that import goVerify, never the reverse.
//
// # What this package must NOT do
//
//   - Return or log a verification code, except IssueResult.RevealedCode when
//     RevealCode is enabled.
//   - Hold a store lock across a notifier, directory, renderer or session
//     facts call.
//   - Persist challenges outside process memory.
//
// # Lifecycle
//
// A captcha is consumed by the first RequestVerification for the session,
// whatever the outcome. A code stays valid until its expiry instant and is
// consumed only by a matching CheckVerification; wrong codes may be retried
// within the window.
package goVerify
