package accountcore

import "context"

// IssueChallenge generates a fresh verification code for an unverified
// account, persists its digest and hands the code to the notification
// channel.
//
// IssueChallenge returns ErrAccountNotFound, ErrAlreadyVerified or
// ErrAttemptsExceeded. A rejected issue leaves the stored challenge
// untouched. Delivery failures are logged and never returned.
func (e *Engine) IssueChallenge(ctx context.Context, identity string) (*ChallengeReceipt, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	r, err := e.flows.IssueChallenge(ctx, NormalizeIdentity(identity))
	if err != nil {
		return nil, err
	}
	return toReceipt(r), nil
}

// ValidateChallenge checks code against the outstanding challenge for
// identity. On success the account becomes verified, the challenge is cleared
// and a session token is returned.
//
// A code that does not match yields ErrInvalidCode even when the challenge has
// expired; a matching code past its expiry yields ErrChallengeExpired.
func (e *Engine) ValidateChallenge(ctx context.Context, identity, code string) (*VerifyResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.ValidateChallenge(ctx, NormalizeIdentity(identity), code)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Account: fromRecord(res.Account).View(),
		Session: SessionToken{Value: res.Session.Value, ExpiresAt: res.Session.ExpiresAt},
	}, nil
}

// ResetChallengeAttempts clears the outstanding challenge of an unverified
// account so a new issue cycle can start. Intended for operator tooling.
func (e *Engine) ResetChallengeAttempts(ctx context.Context, identity string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.ResetChallengeAttempts(ctx, NormalizeIdentity(identity))
}
