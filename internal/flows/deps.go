package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	OTP           OTPDeps
	Signup        SignupDeps
	Login         LoginDeps
	Session       SessionDeps
	PasswordReset PasswordResetDeps
}

// AccountRecord is the flow-local account model.
type AccountRecord struct {
	ID             string
	Identity       string
	CredentialHash string
	DisplayName    string
	Role           string
	Verified       bool
	Challenge      *ChallengeRecord
	TokenEpoch     uint32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChallengeRecord is the flow-local OTP challenge model.
type ChallengeRecord struct {
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
}

// SessionToken is a signed token and its expiry.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenClaims is the flow-local view of a verified session or reset token.
type TokenClaims struct {
	TokenID   string
	AccountID string
	Identity  string
	Epoch     uint32
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UpdateAccountFunc performs an atomic read-modify-write of one account.
type UpdateAccountFunc func(ctx context.Context, identity string, fn func(*AccountRecord) error) (AccountRecord, error)

// EmitAuditFunc records one audit event.
type EmitAuditFunc func(ctx context.Context, eventType string, success bool, accountID, identity string, err error, metadata func() map[string]string)

func noopMetric(int) {}

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopWarn(string, ...any) {}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
