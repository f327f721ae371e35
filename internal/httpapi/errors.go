package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/accountcore"
)

// Error codes carried in the envelope.
const (
	codeMissingFields         = "missing_fields"
	codeInvalidFields         = "invalid_fields"
	codeMalformedBody         = "malformed_body"
	codePasswordPolicy        = "password_policy"
	codeAlreadyExists         = "already_exists"
	codeAccountNotFound       = "account_not_found"
	codeAlreadyVerified       = "already_verified"
	codeInvalidCode           = "invalid_code"
	codeChallengeExpired      = "challenge_expired"
	codeAttemptsExceeded      = "attempts_exceeded"
	codeInvalidCredentials    = "invalid_credentials"
	codeInvalidToken          = "invalid_token"
	codeTokenExpired          = "token_expired"
	codeInvalidOrExpiredToken = "invalid_or_expired_token"
	codeUnavailable           = "service_unavailable"
	codeInternal              = "internal_error"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{accountcore.ErrMissingFields, http.StatusBadRequest, codeMissingFields, "required fields are missing"},
	{accountcore.ErrPasswordPolicy, http.StatusBadRequest, codePasswordPolicy, "password does not meet the length policy"},
	{accountcore.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists, "an account already exists for this email"},
	{accountcore.ErrAccountNotFound, http.StatusNotFound, codeAccountNotFound, "account not found"},
	{accountcore.ErrAlreadyVerified, http.StatusBadRequest, codeAlreadyVerified, "account is already verified"},
	{accountcore.ErrInvalidCode, http.StatusBadRequest, codeInvalidCode, "invalid verification code"},
	{accountcore.ErrChallengeExpired, http.StatusBadRequest, codeChallengeExpired, "verification code expired"},
	{accountcore.ErrAttemptsExceeded, http.StatusTooManyRequests, codeAttemptsExceeded, "too many verification codes requested"},
	{accountcore.ErrInvalidCredentials, http.StatusUnauthorized, codeInvalidCredentials, "invalid email or password"},
	{accountcore.ErrTokenExpired, http.StatusUnauthorized, codeTokenExpired, "session expired"},
	{accountcore.ErrInvalidToken, http.StatusUnauthorized, codeInvalidToken, "invalid session"},
	{accountcore.ErrInvalidOrExpiredToken, http.StatusBadRequest, codeInvalidOrExpiredToken, "reset link is invalid or expired"},
	{accountcore.ErrEngineNotReady, http.StatusServiceUnavailable, codeUnavailable, "service unavailable"},
}

// classify returns the HTTP status, code and client message for err.
// Unknown errors are internal and their text is never sent to the client.
func classify(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, codeInternal, "internal error"
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"op", op,
			"request_id", buildMeta(r).RequestID,
			"error", err,
		)
	}
	writeError(w, r, status, code, message, nil)
}
