package accountcore

import (
	"context"
	"strings"

	"github.com/MrEthical07/accountcore/internal/flows"
)

// Signup registers an unverified account and sends its first verification
// code. Signing up again with the identity of an unverified account re-issues
// the challenge and leaves the stored account unchanged.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res, err := e.flows.Signup(ctx, flows.SignupRequest{
		DisplayName: strings.TrimSpace(req.DisplayName),
		Identity:    NormalizeIdentity(req.Identity),
		Password:    req.Password,
		Role:        strings.TrimSpace(req.Role),
	})
	if err != nil {
		return nil, err
	}

	return &SignupResult{
		Account:         fromRecord(res.Account).View(),
		Created:         res.Created,
		ChallengeResent: res.ChallengeResent,
		Challenge:       toReceipt(res.Challenge),
	}, nil
}

// VerifyOTP is ValidateChallenge under its HTTP-facing name.
func (e *Engine) VerifyOTP(ctx context.Context, identity, code string) (*VerifyResult, error) {
	return e.ValidateChallenge(ctx, identity, code)
}

// ResendOTP issues a new challenge for an unverified account.
func (e *Engine) ResendOTP(ctx context.Context, identity string) (*ChallengeReceipt, error) {
	return e.IssueChallenge(ctx, identity)
}

// Account returns the public view of the account for identity.
func (e *Engine) Account(ctx context.Context, identity string) (AccountView, error) {
	if !e.ready() {
		return AccountView{}, ErrEngineNotReady
	}
	a, err := e.store.GetByIdentity(ctx, NormalizeIdentity(identity))
	if err != nil {
		return AccountView{}, err
	}
	return a.View(), nil
}
