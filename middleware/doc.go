// Package middleware exposes HTTP middleware that guards routes with an
// accountcore session.
//
// # Guards
//
//   - [Guard] rejects with a plain-text 401.
//   - [GuardWith] lets the caller render the rejection.
//
// Each guard reads the session cookie, falling back to an
// "Authorization: Bearer" header, calls Engine.ValidateSession, and injects
// the verified claims into the request context.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Make decisions beyond pass/reject from Engine.ValidateSession.
package middleware
