// Package notify provides goVerify.Notifier implementations.
//
// [Mux] routes a message to the notifier registered for its channel and
// reports goVerify.ErrNotifierUnavailable for channels without one.
// [SMTPNotifier] delivers email, [HTTPSMSNotifier] posts SMS to a JSON
// gateway, and [LogNotifier] only logs that a message would have been sent.
//
// Notifiers never log a message body: it carries the verification code.
package notify
