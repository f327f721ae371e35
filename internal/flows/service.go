package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.OTP.UpdateAccount != nil && s.deps.Session.VerifySession != nil
}

func (s Service) IssueChallenge(ctx context.Context, identity string) (*ChallengeReceipt, error) {
	return RunIssueChallenge(ctx, identity, s.deps.OTP)
}

func (s Service) ValidateChallenge(ctx context.Context, identity, code string) (*VerifyResult, error) {
	return RunValidateChallenge(ctx, identity, code, s.deps.OTP)
}

func (s Service) ResetChallengeAttempts(ctx context.Context, identity string) error {
	return RunResetChallengeAttempts(ctx, identity, s.deps.OTP)
}

func (s Service) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	return RunSignup(ctx, req, s.deps.Signup)
}

func (s Service) Login(ctx context.Context, identity, password string) (*LoginResult, error) {
	return RunLogin(ctx, identity, password, s.deps.Login)
}

func (s Service) ValidateSession(ctx context.Context, token string) (*TokenClaims, error) {
	return RunValidateSession(ctx, token, s.deps.Session)
}

func (s Service) Logout(ctx context.Context, token string) {
	RunLogout(ctx, token, s.deps.Session)
}

func (s Service) LogoutAll(ctx context.Context, token string) error {
	return RunLogoutAll(ctx, token, s.deps.Session)
}

func (s Service) RequestPasswordReset(ctx context.Context, identity string) error {
	return RunRequestPasswordReset(ctx, identity, s.deps.PasswordReset)
}

func (s Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	return RunCompletePasswordReset(ctx, token, newPassword, s.deps.PasswordReset)
}
