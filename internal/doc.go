// Package internal holds packages private to accountcore.
//
// # Sub-packages
//
//   - audit - async event dispatch (Dispatcher + Sink implementations)
//   - flows - flow orchestrators for every Engine operation
//   - otp - verification code generation and digests
//   - httpapi - HTTP handlers for the accountd server
//   - config - accountd environment and file configuration
//   - logging - slog handler construction
//
// # What this package must NOT do
//
//   - Export types that appear in the public accountcore API.
package internal
