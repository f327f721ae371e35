package accountcore

import "time"

// SecurityReport summarises the security-relevant settings an Engine runs with.
type SecurityReport struct {
	SigningAlgorithm    string
	KeyID               string
	RotationKeys        int
	SessionTTL          time.Duration
	ResetTTL            time.Duration
	EpochEnforced       bool
	OTPDigits           int
	OTPTTL              time.Duration
	OTPMaxIssues        int
	Argon2              PasswordConfigReport
	PasswordMinLength   int
	HashUpgradeOnLogin  bool
	CookieSecure        bool
	AsyncNotifications  bool
	AuditEnabled        bool
	SelfAssignableRoles []string
}

// PasswordConfigReport mirrors the Argon2id parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm: e.config.Token.SigningMethod,
		KeyID:            e.config.Token.KeyID,
		RotationKeys:     len(e.config.Token.VerifyKeys),
		SessionTTL:       e.config.Token.SessionTTL,
		ResetTTL:         e.config.Token.ResetTTL,
		EpochEnforced:    e.config.Token.EnforceEpoch,
		OTPDigits:        e.config.OTP.Digits,
		OTPTTL:           e.config.OTP.TTL,
		OTPMaxIssues:     e.config.OTP.MaxIssues,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		PasswordMinLength:   e.config.Password.MinLength,
		HashUpgradeOnLogin:  e.config.Password.UpgradeOnLogin,
		CookieSecure:        e.config.Cookie.Secure,
		AsyncNotifications:  e.config.Notification.Async,
		AuditEnabled:        e.config.Audit.Enabled,
		SelfAssignableRoles: append([]string(nil), e.config.Account.SelfAssignableRoles...),
	}
}
