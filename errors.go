package accountcore

import "errors"

var (
	// ErrMissingFields is returned when a required input (identity, password, token) is empty.
	ErrMissingFields = errors.New("missing required fields")
	// ErrAlreadyExists is returned by Signup when a verified account already owns the identity.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrAccountNotFound is returned when no account matches the identity or id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAlreadyVerified is returned by challenge operations on a verified account.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrInvalidCode is returned when no challenge is outstanding or the code does not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrChallengeExpired is returned when a matching code is submitted after its expiry.
	ErrChallengeExpired = errors.New("verification code expired")
	// ErrAttemptsExceeded is returned when issuing another challenge would pass the per-account ceiling.
	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrInvalidCredentials covers unknown identity, wrong password and unverified account alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, tampered, revoked or wrong-purpose session tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a session token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidOrExpiredToken is returned by CompletePasswordReset for any token failure.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrPasswordPolicy is returned when a new password violates the configured length bounds.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrEngineNotReady is returned when the Engine is used without its required collaborators.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStoreUnavailable wraps backend failures reported by CredentialStore adapters.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)
