package accountcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accountcore/internal/flows"
	"github.com/MrEthical07/accountcore/internal/otp"
	"github.com/MrEthical07/accountcore/jwt"
	"github.com/MrEthical07/accountcore/notify"
	"github.com/MrEthical07/accountcore/password"
)

func (e *Engine) flowDeps() flows.Deps {
	return flows.Deps{
		OTP:           e.otpFlowDeps(),
		Signup:        e.signupFlowDeps(),
		Login:         e.loginFlowDeps(),
		Session:       e.sessionFlowDeps(),
		PasswordReset: e.passwordResetFlowDeps(),
	}
}

func (e *Engine) otpFlowDeps() flows.OTPDeps {
	return flows.OTPDeps{
		Digits:        e.config.OTP.Digits,
		TTL:           e.config.OTP.TTL,
		MaxIssues:     e.config.OTP.MaxIssues,
		Now:           e.now,
		NewCode:       otp.NewCode,
		DigestCode:    otp.Digest,
		CodeMatches:   otp.Matches,
		UpdateAccount: e.updateAccount,
		DeliverCode:   e.deliverCode,
		IssueSession:  e.issueSession,
		MetricInc:     e.flowMetricInc,
		EmitAudit:     e.emitAudit,
		Metrics: flows.OTPMetrics{
			ChallengeIssued:           int(MetricChallengeIssued),
			ChallengeAttemptsExceeded: int(MetricChallengeAttemptsExceeded),
			ChallengeReset:            int(MetricChallengeReset),
			VerifySuccess:             int(MetricVerifySuccess),
			VerifyFailure:             int(MetricVerifyFailure),
		},
		Events: flows.OTPEvents{
			ChallengeIssued: auditEventChallengeIssued,
			ChallengeReset:  auditEventChallengeReset,
			Verify:          auditEventVerify,
		},
		Errors: flows.OTPErrors{
			EngineNotReady:   ErrEngineNotReady,
			MissingFields:    ErrMissingFields,
			AccountNotFound:  ErrAccountNotFound,
			AlreadyVerified:  ErrAlreadyVerified,
			InvalidCode:      ErrInvalidCode,
			ChallengeExpired: ErrChallengeExpired,
			AttemptsExceeded: ErrAttemptsExceeded,
		},
	}
}

func (e *Engine) signupFlowDeps() flows.SignupDeps {
	otpDeps := e.otpFlowDeps()
	return flows.SignupDeps{
		MinPasswordBytes:    e.config.Password.MinLength,
		MaxPasswordBytes:    e.config.Password.MaxLength,
		DefaultRole:         e.config.Account.DefaultRole,
		SelfAssignableRoles: e.config.Account.SelfAssignableRoles,
		Now:                 func() time.Time { return e.now().UTC() },
		GetAccount:          e.getAccount,
		CreateAccount:       e.createAccount,
		HashPassword:        e.hashPassword,
		IssueChallenge: func(ctx context.Context, identity string) (*flows.ChallengeReceipt, error) {
			return flows.RunIssueChallenge(ctx, identity, otpDeps)
		},
		MetricInc: e.flowMetricInc,
		EmitAudit: e.emitAudit,
		Metrics: flows.SignupMetrics{
			SignupSuccess:   int(MetricSignupSuccess),
			SignupDuplicate: int(MetricSignupDuplicate),
			SignupResent:    int(MetricSignupResent),
		},
		Events: flows.SignupEvents{
			Signup: auditEventSignup,
		},
		Errors: flows.SignupErrors{
			EngineNotReady:  ErrEngineNotReady,
			MissingFields:   ErrMissingFields,
			AlreadyExists:   ErrAlreadyExists,
			AccountNotFound: ErrAccountNotFound,
			PasswordPolicy:  ErrPasswordPolicy,
		},
	}
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		GetAccount:     e.getAccount,
		UpdateAccount:  e.updateAccount,
		VerifyPassword: e.passwordHash.Verify,
		VerifyDummy:    func(plain string) { e.passwordHash.VerifyDummy(plain) },
		NeedsUpgrade: func(hash string) bool {
			upgrade, err := e.passwordHash.NeedsUpgrade(hash)
			return err == nil && upgrade
		},
		HashPassword: e.hashPassword,
		IssueSession: e.issueSession,
		Warn:         e.logger.Warn,
		MetricInc:    e.flowMetricInc,
		EmitAudit:    e.emitAudit,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: flows.LoginEvents{
			Login:           auditEventLogin,
			PasswordUpgrade: auditEventPasswordUpgrade,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			AccountNotFound:    ErrAccountNotFound,
			InvalidCredentials: ErrInvalidCredentials,
		},
	}
	if e.profiles != nil {
		deps.ReadProfile = func(ctx context.Context, rec flows.AccountRecord) (any, error) {
			return e.profiles.ReadProfile(ctx, fromRecord(rec).View())
		}
	}
	return deps
}

func (e *Engine) sessionFlowDeps() flows.SessionDeps {
	return flows.SessionDeps{
		EnforceEpoch:   e.config.Token.EnforceEpoch,
		VerifySession:  e.verifySession,
		GetAccountByID: e.getAccountByID,
		UpdateAccount:  e.updateAccount,
		Now:            e.now,
		MetricInc:      e.flowMetricInc,
		EmitAudit:      e.emitAudit,
		Metrics: flows.SessionMetrics{
			SessionRejected: int(MetricSessionRejected),
			Logout:          int(MetricLogout),
			LogoutAll:       int(MetricLogoutAll),
		},
		Events: flows.SessionEvents{
			Logout:    auditEventLogout,
			LogoutAll: auditEventLogoutAll,
		},
		Errors: flows.SessionErrors{
			EngineNotReady:  ErrEngineNotReady,
			MissingFields:   ErrMissingFields,
			AccountNotFound: ErrAccountNotFound,
			InvalidToken:    ErrInvalidToken,
		},
	}
}

func (e *Engine) passwordResetFlowDeps() flows.PasswordResetDeps {
	return flows.PasswordResetDeps{
		MinPasswordBytes: e.config.Password.MinLength,
		MaxPasswordBytes: e.config.Password.MaxLength,
		GetAccount:       e.getAccount,
		UpdateAccount:    e.updateAccount,
		HashPassword:     e.hashPassword,
		IssueReset:       e.issueReset,
		VerifyReset:      e.verifyReset,
		DeliverLink:      e.deliverResetLink,
		MetricInc:        e.flowMetricInc,
		EmitAudit:        e.emitAudit,
		Metrics: flows.PasswordResetMetrics{
			PasswordResetRequest: int(MetricPasswordResetRequest),
			PasswordResetSuccess: int(MetricPasswordResetSuccess),
			PasswordResetFailure: int(MetricPasswordResetFailure),
		},
		Events: flows.PasswordResetEvents{
			PasswordResetRequest:  auditEventPasswordResetRequest,
			PasswordResetComplete: auditEventPasswordResetComplete,
		},
		Errors: flows.PasswordResetErrors{
			EngineNotReady:        ErrEngineNotReady,
			MissingFields:         ErrMissingFields,
			AccountNotFound:       ErrAccountNotFound,
			InvalidOrExpiredToken: ErrInvalidOrExpiredToken,
			PasswordPolicy:        ErrPasswordPolicy,
		},
	}
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

/*
====================================
CREDENTIALS AND TOKENS
====================================
*/

func (e *Engine) hashPassword(plain string) (string, error) {
	hash, err := e.passwordHash.Hash(plain)
	if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
		return "", ErrPasswordPolicy
	}
	return hash, err
}

func subjectOf(rec flows.AccountRecord) jwt.Subject {
	return jwt.Subject{AccountID: rec.ID, Identity: rec.Identity, Epoch: rec.TokenEpoch}
}

func (e *Engine) issueSession(rec flows.AccountRecord) (flows.SessionToken, error) {
	tok, err := e.issuer.IssueSession(subjectOf(rec))
	if err != nil {
		return flows.SessionToken{}, err
	}
	e.metricInc(MetricSessionIssued)
	return flows.SessionToken{Value: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

func (e *Engine) issueReset(rec flows.AccountRecord) (flows.SessionToken, error) {
	tok, err := e.issuer.IssueReset(subjectOf(rec))
	if err != nil {
		return flows.SessionToken{}, err
	}
	return flows.SessionToken{Value: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

func (e *Engine) verifySession(token string) (flows.TokenClaims, error) {
	claims, err := e.issuer.Verify(token, jwt.PurposeSession)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return flows.TokenClaims{}, ErrTokenExpired
		}
		return flows.TokenClaims{}, ErrInvalidToken
	}
	return toTokenClaims(claims), nil
}

func (e *Engine) verifyReset(token string) (flows.TokenClaims, error) {
	claims, err := e.issuer.Verify(token, jwt.PurposePasswordReset)
	if err != nil {
		return flows.TokenClaims{}, ErrInvalidOrExpiredToken
	}
	return toTokenClaims(claims), nil
}

func toTokenClaims(c *jwt.Claims) flows.TokenClaims {
	out := flows.TokenClaims{
		TokenID:   c.ID,
		AccountID: c.AccountID(),
		Identity:  c.Identity,
		Epoch:     c.Epoch,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

/*
====================================
NOTIFICATIONS
====================================
*/

func (e *Engine) deliverCode(ctx context.Context, rec flows.AccountRecord, code string, ttl time.Duration) {
	e.notifier.Dispatch(ctx, notify.VerificationCodeMessage(e.config.Notification.AppName, rec.Identity, rec.DisplayName, code, ttl))
}

func (e *Engine) deliverResetLink(ctx context.Context, rec flows.AccountRecord, tok flows.SessionToken) {
	link := notify.ResetLink(e.config.Notification.BaseURL, e.config.Notification.ResetPath, tok.Value)
	e.notifier.Dispatch(ctx, notify.PasswordResetMessage(e.config.Notification.AppName, rec.Identity, rec.DisplayName, link, e.config.Token.ResetTTL))
}

func (e *Engine) notifyObserver() notify.Observer {
	return notify.Observer{
		Sent: func(notify.Message) { e.metricInc(MetricNotificationSent) },
		Failed: func(notify.Message, error) {
			e.metricInc(MetricNotificationFailed)
		},
		Dropped: func(notify.Message) { e.metricInc(MetricNotificationDropped) },
	}
}
