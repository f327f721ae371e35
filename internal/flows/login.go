package flows

import (
	"context"
	"errors"
)

type LoginResult struct {
	Account AccountRecord
	Profile any
	Session SessionToken
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	PasswordUpgraded int
}

type LoginEvents struct {
	Login           string
	PasswordUpgrade string
}

type LoginErrors struct {
	EngineNotReady     error
	AccountNotFound    error
	InvalidCredentials error
}

type LoginDeps struct {
	UpgradeOnLogin bool

	GetAccount     func(context.Context, string) (AccountRecord, error)
	UpdateAccount  UpdateAccountFunc
	VerifyPassword func(password, hash string) (bool, error)
	VerifyDummy    func(password string)
	NeedsUpgrade   func(hash string) bool
	HashPassword   func(string) (string, error)
	IssueSession   func(AccountRecord) (SessionToken, error)
	ReadProfile    func(context.Context, AccountRecord) (any, error)
	Warn           func(string, ...any)

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
}

// RunLogin authenticates identity/password and issues a session. Every
// credential failure collapses into Errors.InvalidCredentials.
func RunLogin(ctx context.Context, identity, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)

	if deps.GetAccount == nil || deps.VerifyPassword == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(accountID, why string) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.Login, false, accountID, identity, deps.Errors.InvalidCredentials, reason(why))
		return nil, deps.Errors.InvalidCredentials
	}

	if identity == "" || password == "" {
		return fail("", "missing_fields")
	}

	acct, err := deps.GetAccount(ctx, identity)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			if deps.VerifyDummy != nil {
				deps.VerifyDummy(password)
			}
			return fail("", "unknown_identity")
		}
		return nil, err
	}

	ok, err := deps.VerifyPassword(password, acct.CredentialHash)
	if err != nil {
		deps.Warn("accountcore: stored credential hash unreadable", "account_id", acct.ID, "error", err)
		return fail(acct.ID, "hash_error")
	}
	if !ok {
		return fail(acct.ID, "password_mismatch")
	}
	if !acct.Verified {
		return fail(acct.ID, "unverified")
	}

	if deps.UpgradeOnLogin && deps.NeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdateAccount != nil && deps.NeedsUpgrade(acct.CredentialHash) {
		upgradeHash(ctx, acct, password, deps)
	}

	session, err := deps.IssueSession(acct)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.Login, false, acct.ID, identity, err, reason("session_issue"))
		return nil, err
	}

	var profile any
	if deps.ReadProfile != nil {
		profile, err = deps.ReadProfile(ctx, acct)
		if err != nil {
			deps.Warn("accountcore: profile read failed", "account_id", acct.ID, "error", err)
			profile = nil
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.Login, true, acct.ID, identity, nil, nil)

	return &LoginResult{Account: acct, Profile: profile, Session: session}, nil
}

func upgradeHash(ctx context.Context, acct AccountRecord, password string, deps LoginDeps) {
	newHash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("accountcore: password rehash failed", "account_id", acct.ID, "error", err)
		return
	}

	oldHash := acct.CredentialHash
	_, err = deps.UpdateAccount(ctx, acct.Identity, func(a *AccountRecord) error {
		if a.CredentialHash != oldHash {
			return errHashChanged
		}
		a.CredentialHash = newHash
		return nil
	})
	if err != nil {
		if !errors.Is(err, errHashChanged) {
			deps.Warn("accountcore: password upgrade write failed", "account_id", acct.ID, "error", err)
		}
		return
	}

	deps.MetricInc(deps.Metrics.PasswordUpgraded)
	deps.EmitAudit(ctx, deps.Events.PasswordUpgrade, true, acct.ID, acct.Identity, nil, nil)
}

var errHashChanged = errors.New("credential hash changed concurrently")
