// Package jwt issues and verifies the signed tokens used for account sessions
// and password-reset links.
//
// Every token carries a purpose claim ("pur") so a reset token can never be
// presented as a session and vice versa, and the account's token epoch ("ep")
// so the caller can revoke outstanding tokens by bumping the epoch.
//
// Verification maps every failure to one of two sentinels: [ErrTokenExpired]
// for a well-formed token past its expiry, [ErrTokenInvalid] for everything
// else (bad signature, malformed input, unknown key id, wrong purpose).
package jwt
