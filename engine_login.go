package accountcore

import "context"

// Login authenticates identity and password and issues a session token.
//
// Unknown identity, wrong password and unverified account all return
// ErrInvalidCredentials. A ProfileReader failure is logged and the login
// still succeeds with a nil Profile.
func (e *Engine) Login(ctx context.Context, identity, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res, err := e.flows.Login(ctx, NormalizeIdentity(identity), password)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Account: fromRecord(res.Account).View(),
		Profile: res.Profile,
		Session: SessionToken{Value: res.Session.Value, ExpiresAt: res.Session.ExpiresAt},
	}, nil
}
