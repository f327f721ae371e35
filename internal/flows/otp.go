package flows

import (
	"context"
	"errors"
	"time"
)

// ChallengeReceipt describes a freshly issued challenge without the code.
type ChallengeReceipt struct {
	ExpiresAt time.Time
	Attempts  int
	Remaining int
}

// VerifyResult is returned after a successful challenge validation.
type VerifyResult struct {
	Account AccountRecord
	Session SessionToken
}

type OTPMetrics struct {
	ChallengeIssued           int
	ChallengeAttemptsExceeded int
	ChallengeReset            int
	VerifySuccess             int
	VerifyFailure             int
}

type OTPEvents struct {
	ChallengeIssued string
	ChallengeReset  string
	Verify          string
}

type OTPErrors struct {
	EngineNotReady   error
	MissingFields    error
	AccountNotFound  error
	AlreadyVerified  error
	InvalidCode      error
	ChallengeExpired error
	AttemptsExceeded error
}

type OTPDeps struct {
	Digits    int
	TTL       time.Duration
	MaxIssues int

	Now         func() time.Time
	NewCode     func(int) (string, error)
	DigestCode  func(string) string
	CodeMatches func(code, digest string) bool

	UpdateAccount UpdateAccountFunc
	DeliverCode   func(ctx context.Context, account AccountRecord, code string, ttl time.Duration)
	IssueSession  func(AccountRecord) (SessionToken, error)

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics OTPMetrics
	Events  OTPEvents
	Errors  OTPErrors
}

func normalizeOTPDeps(deps *OTPDeps) {
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

// RunIssueChallenge generates a code, persists its digest on the account and
// hands the plaintext to the delivery callback.
func RunIssueChallenge(ctx context.Context, identity string, deps OTPDeps) (*ChallengeReceipt, error) {
	normalizeOTPDeps(&deps)

	if deps.UpdateAccount == nil || deps.NewCode == nil || deps.DigestCode == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if identity == "" {
		return nil, deps.Errors.MissingFields
	}

	code, err := deps.NewCode(deps.Digits)
	if err != nil {
		return nil, err
	}
	digest := deps.DigestCode(code)
	expiresAt := deps.Now().Add(deps.TTL)

	var attempts int
	rec, err := deps.UpdateAccount(ctx, identity, func(a *AccountRecord) error {
		if a.Verified {
			return deps.Errors.AlreadyVerified
		}
		attempts = 1
		if a.Challenge != nil {
			attempts = a.Challenge.Attempts + 1
		}
		if attempts > deps.MaxIssues {
			return deps.Errors.AttemptsExceeded
		}
		a.Challenge = &ChallengeRecord{
			CodeHash:  digest,
			ExpiresAt: expiresAt,
			Attempts:  attempts,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, deps.Errors.AttemptsExceeded) {
			deps.MetricInc(deps.Metrics.ChallengeAttemptsExceeded)
		}
		deps.EmitAudit(ctx, deps.Events.ChallengeIssued, false, rec.ID, identity, err, nil)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.ChallengeIssued)
	deps.EmitAudit(ctx, deps.Events.ChallengeIssued, true, rec.ID, identity, nil, nil)

	if deps.DeliverCode != nil {
		deps.DeliverCode(ctx, rec, code, deps.TTL)
	}

	return &ChallengeReceipt{
		ExpiresAt: expiresAt,
		Attempts:  attempts,
		Remaining: deps.MaxIssues - attempts,
	}, nil
}

// RunValidateChallenge checks a submitted code against the outstanding
// challenge. The account is marked verified and a session is minted on success.
// A mismatched code is reported before expiry is considered.
func RunValidateChallenge(ctx context.Context, identity, code string, deps OTPDeps) (*VerifyResult, error) {
	normalizeOTPDeps(&deps)

	if deps.UpdateAccount == nil || deps.CodeMatches == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if identity == "" {
		return nil, deps.Errors.MissingFields
	}

	now := deps.Now()
	rec, err := deps.UpdateAccount(ctx, identity, func(a *AccountRecord) error {
		if a.Verified {
			return deps.Errors.AlreadyVerified
		}
		if a.Challenge == nil || !deps.CodeMatches(code, a.Challenge.CodeHash) {
			return deps.Errors.InvalidCode
		}
		if now.After(a.Challenge.ExpiresAt) {
			return deps.Errors.ChallengeExpired
		}
		a.Verified = true
		a.Challenge = nil
		return nil
	})
	if err != nil {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.Verify, false, rec.ID, identity, err, nil)
		return nil, err
	}

	session, err := deps.IssueSession(rec)
	if err != nil {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.Verify, false, rec.ID, identity, err, reason("session_issue"))
		return nil, err
	}

	deps.MetricInc(deps.Metrics.VerifySuccess)
	deps.EmitAudit(ctx, deps.Events.Verify, true, rec.ID, identity, nil, nil)

	return &VerifyResult{Account: rec, Session: session}, nil
}

// RunResetChallengeAttempts removes the outstanding challenge so a fresh
// issue cycle can start.
func RunResetChallengeAttempts(ctx context.Context, identity string, deps OTPDeps) error {
	normalizeOTPDeps(&deps)

	if deps.UpdateAccount == nil {
		return deps.Errors.EngineNotReady
	}
	if identity == "" {
		return deps.Errors.MissingFields
	}

	rec, err := deps.UpdateAccount(ctx, identity, func(a *AccountRecord) error {
		if a.Verified {
			return deps.Errors.AlreadyVerified
		}
		a.Challenge = nil
		return nil
	})
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.ChallengeReset, false, rec.ID, identity, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.ChallengeReset)
	deps.EmitAudit(ctx, deps.Events.ChallengeReset, true, rec.ID, identity, nil, nil)
	return nil
}
