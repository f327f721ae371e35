package flows

import (
	"context"
	"errors"
	"slices"
	"time"
)

type SignupRequest struct {
	DisplayName string
	Identity    string
	Password    string
	Role        string
}

type SignupResult struct {
	Account         AccountRecord
	Created         bool
	ChallengeResent bool
	Challenge       *ChallengeReceipt
}

type SignupMetrics struct {
	SignupSuccess   int
	SignupDuplicate int
	SignupResent    int
}

type SignupEvents struct {
	Signup string
}

type SignupErrors struct {
	EngineNotReady  error
	MissingFields   error
	AlreadyExists   error
	AccountNotFound error
	PasswordPolicy  error
}

type SignupDeps struct {
	MinPasswordBytes    int
	MaxPasswordBytes    int
	DefaultRole         string
	SelfAssignableRoles []string

	Now            func() time.Time
	GetAccount     func(context.Context, string) (AccountRecord, error)
	CreateAccount  func(context.Context, AccountRecord) (AccountRecord, error)
	HashPassword   func(string) (string, error)
	IssueChallenge func(context.Context, string) (*ChallengeReceipt, error)

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics SignupMetrics
	Events  SignupEvents
	Errors  SignupErrors
}

func normalizeSignupDeps(deps *SignupDeps) {
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

// RunSignup creates an unverified account and issues its first challenge. An
// existing unverified account gets a fresh challenge instead.
func RunSignup(ctx context.Context, req SignupRequest, deps SignupDeps) (*SignupResult, error) {
	normalizeSignupDeps(&deps)

	if deps.GetAccount == nil || deps.CreateAccount == nil || deps.HashPassword == nil || deps.IssueChallenge == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if req.Identity == "" || req.Password == "" {
		deps.EmitAudit(ctx, deps.Events.Signup, false, "", req.Identity, deps.Errors.MissingFields, nil)
		return nil, deps.Errors.MissingFields
	}

	existing, err := deps.GetAccount(ctx, req.Identity)
	switch {
	case err == nil:
		return resendForExisting(ctx, existing, deps)
	case !errors.Is(err, deps.Errors.AccountNotFound):
		return nil, err
	}

	if len(req.Password) < deps.MinPasswordBytes || (deps.MaxPasswordBytes > 0 && len(req.Password) > deps.MaxPasswordBytes) {
		deps.EmitAudit(ctx, deps.Events.Signup, false, "", req.Identity, deps.Errors.PasswordPolicy, nil)
		return nil, deps.Errors.PasswordPolicy
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := deps.DefaultRole
	if req.Role != "" && slices.Contains(deps.SelfAssignableRoles, req.Role) {
		role = req.Role
	}

	now := deps.Now()
	created, err := deps.CreateAccount(ctx, AccountRecord{
		Identity:       req.Identity,
		CredentialHash: hash,
		DisplayName:    req.DisplayName,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if !errors.Is(err, deps.Errors.AlreadyExists) {
			return nil, err
		}
		// Lost a concurrent create; continue as if the account already existed.
		existing, getErr := deps.GetAccount(ctx, req.Identity)
		if getErr != nil {
			return nil, getErr
		}
		return resendForExisting(ctx, existing, deps)
	}

	receipt, err := deps.IssueChallenge(ctx, created.Identity)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Signup, false, created.ID, created.Identity, err, reason("challenge_issue"))
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SignupSuccess)
	deps.EmitAudit(ctx, deps.Events.Signup, true, created.ID, created.Identity, nil, func() map[string]string {
		return map[string]string{"role": role}
	})

	return &SignupResult{Account: created, Created: true, Challenge: receipt}, nil
}

func resendForExisting(ctx context.Context, existing AccountRecord, deps SignupDeps) (*SignupResult, error) {
	if existing.Verified {
		deps.MetricInc(deps.Metrics.SignupDuplicate)
		deps.EmitAudit(ctx, deps.Events.Signup, false, existing.ID, existing.Identity, deps.Errors.AlreadyExists, nil)
		return nil, deps.Errors.AlreadyExists
	}

	receipt, err := deps.IssueChallenge(ctx, existing.Identity)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Signup, false, existing.ID, existing.Identity, err, reason("challenge_resend"))
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SignupResent)
	deps.EmitAudit(ctx, deps.Events.Signup, true, existing.ID, existing.Identity, nil, reason("challenge_resent"))

	return &SignupResult{Account: existing, ChallengeResent: true, Challenge: receipt}, nil
}
