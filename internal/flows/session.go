package flows

import (
	"context"
	"errors"
	"time"
)

type SessionMetrics struct {
	SessionRejected int
	Logout          int
	LogoutAll       int
}

type SessionEvents struct {
	Logout    string
	LogoutAll string
}

type SessionErrors struct {
	EngineNotReady  error
	MissingFields   error
	AccountNotFound error
	InvalidToken    error
}

type SessionDeps struct {
	EnforceEpoch bool

	VerifySession  func(string) (TokenClaims, error)
	GetAccountByID func(context.Context, string) (AccountRecord, error)
	UpdateAccount  UpdateAccountFunc
	Now            func() time.Time

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics SessionMetrics
	Events  SessionEvents
	Errors  SessionErrors
}

func normalizeSessionDeps(deps *SessionDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
}

// RunValidateSession verifies a session token. With EnforceEpoch the account
// is reloaded and the token must still match its id, identity and epoch.
func RunValidateSession(ctx context.Context, token string, deps SessionDeps) (*TokenClaims, error) {
	normalizeSessionDeps(&deps)

	if deps.VerifySession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if token == "" {
		deps.MetricInc(deps.Metrics.SessionRejected)
		return nil, deps.Errors.InvalidToken
	}

	claims, err := deps.VerifySession(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.SessionRejected)
		return nil, err
	}

	if !deps.EnforceEpoch || deps.GetAccountByID == nil {
		return &claims, nil
	}

	acct, err := deps.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			deps.MetricInc(deps.Metrics.SessionRejected)
			return nil, deps.Errors.InvalidToken
		}
		return nil, err
	}
	if acct.TokenEpoch != claims.Epoch || acct.Identity != claims.Identity || !acct.Verified {
		deps.MetricInc(deps.Metrics.SessionRejected)
		return nil, deps.Errors.InvalidToken
	}

	return &claims, nil
}

// RunLogout records a client-side logout. Session tokens are stateless, so
// the caller is expected to discard the cookie.
func RunLogout(ctx context.Context, token string, deps SessionDeps) {
	normalizeSessionDeps(&deps)

	var accountID, identity string
	if token != "" && deps.VerifySession != nil {
		if claims, err := deps.VerifySession(token); err == nil {
			accountID, identity = claims.AccountID, claims.Identity
		}
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, accountID, identity, nil, nil)
}

// RunLogoutAll revokes every outstanding session of the token's account by
// bumping the account epoch.
func RunLogoutAll(ctx context.Context, token string, deps SessionDeps) error {
	normalizeSessionDeps(&deps)

	if deps.UpdateAccount == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := RunValidateSession(ctx, token, deps)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.LogoutAll, false, "", "", err, nil)
		return err
	}

	_, err = deps.UpdateAccount(ctx, claims.Identity, func(a *AccountRecord) error {
		if a.ID != claims.AccountID || a.TokenEpoch != claims.Epoch {
			return deps.Errors.InvalidToken
		}
		a.TokenEpoch++
		return nil
	})
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			err = deps.Errors.InvalidToken
		}
		deps.EmitAudit(ctx, deps.Events.LogoutAll, false, claims.AccountID, claims.Identity, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, claims.AccountID, claims.Identity, nil, nil)
	return nil
}
