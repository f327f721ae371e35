// Package notify delivers verification codes and password-reset links to an
// account's contact address.
//
// A [Sender] is the notification channel capability: it either delivers a
// [Message] or fails with an error wrapping [ErrDelivery]. The [Dispatcher]
// sits in front of a Sender so that callers never block on, or fail because
// of, delivery. Failures are logged and reported to an [Observer].
//
// # What this package must NOT do
//
//   - Import accountcore.
//   - Log message bodies; they carry one-time codes and reset tokens.
package notify
