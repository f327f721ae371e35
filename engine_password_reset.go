package accountcore

import "context"

// RequestPasswordReset issues a short-lived reset token for identity and
// sends the reset link through the notification channel.
//
// It returns ErrAccountNotFound for an unknown identity; HTTP callers should
// acknowledge the request identically either way.
func (e *Engine) RequestPasswordReset(ctx context.Context, identity string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.RequestPasswordReset(ctx, NormalizeIdentity(identity))
}

// CompletePasswordReset replaces the account password using a reset token.
//
// Every token failure returns ErrInvalidOrExpiredToken and leaves the stored
// hash unchanged. Success revokes all existing sessions and makes the token
// unusable.
func (e *Engine) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.CompletePasswordReset(ctx, token, newPassword)
}
