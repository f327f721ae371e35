package flows

import (
	"context"
	"errors"
)

type PasswordResetMetrics struct {
	PasswordResetRequest int
	PasswordResetSuccess int
	PasswordResetFailure int
}

type PasswordResetEvents struct {
	PasswordResetRequest  string
	PasswordResetComplete string
}

type PasswordResetErrors struct {
	EngineNotReady        error
	MissingFields         error
	AccountNotFound       error
	InvalidOrExpiredToken error
	PasswordPolicy        error
}

type PasswordResetDeps struct {
	MinPasswordBytes int
	MaxPasswordBytes int

	GetAccount    func(context.Context, string) (AccountRecord, error)
	UpdateAccount UpdateAccountFunc
	HashPassword  func(string) (string, error)
	IssueReset    func(AccountRecord) (SessionToken, error)
	VerifyReset   func(string) (TokenClaims, error)
	DeliverLink   func(ctx context.Context, account AccountRecord, token SessionToken)

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}

// RunRequestPasswordReset issues a reset token for identity and hands the
// reset link to the delivery callback.
func RunRequestPasswordReset(ctx context.Context, identity string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if deps.GetAccount == nil || deps.IssueReset == nil {
		return deps.Errors.EngineNotReady
	}
	if identity == "" {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", "", deps.Errors.MissingFields, nil)
		return deps.Errors.MissingFields
	}

	acct, err := deps.GetAccount(ctx, identity)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", identity, err, nil)
		return err
	}

	token, err := deps.IssueReset(acct)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, acct.ID, identity, err, reason("token_issue"))
		return err
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, acct.ID, identity, nil, nil)

	if deps.DeliverLink != nil {
		deps.DeliverLink(ctx, acct, token)
	}
	return nil
}

// RunCompletePasswordReset verifies a reset token and replaces the credential
// hash. The account epoch is bumped so the token cannot be replayed and every
// outstanding session is revoked.
func RunCompletePasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if deps.UpdateAccount == nil || deps.HashPassword == nil || deps.VerifyReset == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(accountID, identity string, err error, why string) error {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetComplete, false, accountID, identity, err, reason(why))
		return err
	}

	if token == "" || newPassword == "" {
		return fail("", "", deps.Errors.MissingFields, "missing_fields")
	}

	claims, err := deps.VerifyReset(token)
	if err != nil {
		return fail("", "", deps.Errors.InvalidOrExpiredToken, "token_rejected")
	}

	if len(newPassword) < deps.MinPasswordBytes || (deps.MaxPasswordBytes > 0 && len(newPassword) > deps.MaxPasswordBytes) {
		return fail(claims.AccountID, claims.Identity, deps.Errors.PasswordPolicy, "password_policy")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = deps.UpdateAccount(ctx, claims.Identity, func(a *AccountRecord) error {
		if a.ID != claims.AccountID || a.TokenEpoch != claims.Epoch {
			return deps.Errors.InvalidOrExpiredToken
		}
		a.CredentialHash = hash
		a.TokenEpoch++
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, deps.Errors.InvalidOrExpiredToken):
			return fail(claims.AccountID, claims.Identity, err, "stale_token")
		case errors.Is(err, deps.Errors.AccountNotFound):
			return fail(claims.AccountID, claims.Identity, deps.Errors.InvalidOrExpiredToken, "unknown_account")
		}
		return fail(claims.AccountID, claims.Identity, err, "store_error")
	}

	deps.MetricInc(deps.Metrics.PasswordResetSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetComplete, true, claims.AccountID, claims.Identity, nil, nil)
	return nil
}
