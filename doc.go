// Package accountcore provides the account verification and session-issuance
// core of a web application: signup with one-time-password (OTP) verification,
// password login, signed session cookies, and password reset by emailed link.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// accountcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] capability that persistence adapters implement, and
// value types ([Account], [AccountView], [SessionClaims], etc.). Flow
// orchestration, code generation and audit dispatch live under internal/ and
// are never exported. Store adapters live under store/ and depend on this
// package, never the reverse.
//
// # What this package must NOT do
//
//   - Expose credential hashes or OTP digests through AccountView or any HTTP-facing type.
//   - Fail an operation because a notification could not be delivered.
//   - Import any sub-package that re-imports accountcore (no import cycles).
//
// # Consistency contract
//
// Every mutation of an account goes through [CredentialStore.Update], which
// runs the supplied function against the latest record and writes its result
// atomically. Concurrent resends or verifications for the same identity never
// lose an update.
package accountcore
