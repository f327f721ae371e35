package accountcore

import (
	"context"
	"time"
)

// ValidateSession verifies a session token and returns its claims.
//
// It returns ErrTokenExpired for an expired token and ErrInvalidToken for any
// other failure, including reset tokens and tokens revoked by a password
// reset or LogoutAll.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*SessionClaims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	c, err := e.flows.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return &SessionClaims{
		AccountID: c.AccountID,
		Identity:  c.Identity,
		TokenID:   c.TokenID,
		Epoch:     c.Epoch,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}, nil
}

// Logout records a logout for token. Session tokens are stateless; callers
// clear the session cookie. Use LogoutAll to revoke tokens server-side.
func (e *Engine) Logout(ctx context.Context, token string) {
	if !e.ready() {
		return
	}
	e.flows.Logout(ctx, token)
}

// LogoutAll revokes every session of the account that owns token, including
// token itself.
func (e *Engine) LogoutAll(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.LogoutAll(ctx, token)
}
