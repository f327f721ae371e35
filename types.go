package accountcore

import (
	"context"
	"time"
)

// OTPChallenge is an outstanding verification challenge. CodeHash is the hex
// SHA-256 of the issued code; the plaintext code is never persisted.
type OTPChallenge struct {
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Account is the persisted record for one registered identity.
type Account struct {
	ID             string        `json:"id"`
	Identity       string        `json:"identity"`
	CredentialHash string        `json:"credential_hash"`
	DisplayName    string        `json:"display_name"`
	Role           string        `json:"role"`
	Verified       bool          `json:"verified"`
	Challenge      *OTPChallenge `json:"challenge,omitempty"`
	TokenEpoch     uint32        `json:"token_epoch"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of a.
func (a Account) Clone() Account {
	out := a
	if a.Challenge != nil {
		c := *a.Challenge
		out.Challenge = &c
	}
	return out
}

// View returns the public projection of a.
func (a Account) View() AccountView {
	return AccountView{
		ID:          a.ID,
		Identity:    a.Identity,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		Verified:    a.Verified,
		CreatedAt:   a.CreatedAt,
	}
}

// AccountView is the public projection of an Account. The credential hash and
// challenge never appear here. ID is always a string on the wire.
type AccountView struct {
	ID          string    `json:"id"`
	Identity    string    `json:"email"`
	DisplayName string    `json:"name"`
	Role        string    `json:"role"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// CredentialStore persists accounts keyed by identity.
//
// Implementations must return ErrAccountNotFound for missing records and
// ErrAlreadyExists when Create collides with an existing identity. Backend
// failures should wrap ErrStoreUnavailable.
type CredentialStore interface {
	// Create stores a new account, assigning its ID. The stored record is returned.
	Create(ctx context.Context, account Account) (Account, error)
	GetByIdentity(ctx context.Context, identity string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	// Update loads the account for identity, applies fn, and writes the result
	// atomically with respect to other Update calls for the same identity. An
	// error from fn aborts the write and is returned unchanged. fn may be
	// invoked more than once when the adapter retries on contention.
	Update(ctx context.Context, identity string, fn func(*Account) error) (Account, error)
}

// ProfileReader supplies optional profile data returned alongside a login.
type ProfileReader interface {
	ReadProfile(ctx context.Context, account AccountView) (any, error)
}

// SignupRequest is the input to Engine.Signup.
type SignupRequest struct {
	DisplayName string
	Identity    string
	Password    string
	Role        string
}

// SignupResult reports the account and whether it was newly created or an
// abandoned signup that had its challenge re-issued.
type SignupResult struct {
	Account         AccountView
	Created         bool
	ChallengeResent bool
	Challenge       *ChallengeReceipt
}

// ChallengeReceipt describes an issued challenge without revealing its code.
type ChallengeReceipt struct {
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	Remaining int       `json:"remaining"`
}

// SessionToken is a signed session token and its expiry.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// VerifyResult is returned by a successful challenge validation.
type VerifyResult struct {
	Account AccountView
	Session SessionToken
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Account AccountView
	Profile any
	Session SessionToken
}

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	AccountID string    `json:"account_id"`
	Identity  string    `json:"email"`
	TokenID   string    `json:"token_id"`
	Epoch     uint32    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
