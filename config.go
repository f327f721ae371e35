package accountcore

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of the Engine. Start from DefaultConfig and
// override fields; Builder.Build calls Validate.
type Config struct {
	Token        TokenConfig
	OTP          OTPConfig
	Password     PasswordConfig
	Account      AccountConfig
	Cookie       CookieConfig
	Notification NotificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls session and reset token signing.
type TokenConfig struct {
	SessionTTL    time.Duration
	ResetTTL      time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte // HMAC secret for hs256
	PublicKey     []byte
	KeyID         string
	VerifyKeys    map[string][]byte
	Issuer        string
	Audience      string
	Leeway        time.Duration

	// EnforceEpoch reloads the account on session validation and rejects
	// tokens minted before the last password reset or logout-all.
	EnforceEpoch bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls verification challenges.
type OTPConfig struct {
	Digits    int
	TTL       time.Duration
	MaxIssues int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and the accepted length range.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

// AccountConfig controls role assignment at signup.
type AccountConfig struct {
	DefaultRole string
	// SelfAssignableRoles lists the roles a signup request may select. Any
	// other requested role falls back to DefaultRole.
	SelfAssignableRoles []string
}

// CookieConfig shapes the session cookie. The cookie is always HttpOnly.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// NotificationConfig controls delivery of codes and reset links.
type NotificationConfig struct {
	Async       bool
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
	AppName     string
	BaseURL     string
	ResetPath   string
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SessionTTL:    30 * 24 * time.Hour,
			ResetTTL:      15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "accountcore",
			EnforceEpoch:  true,
		},
		OTP: OTPConfig{
			Digits:    6,
			TTL:       15 * time.Minute,
			MaxIssues: 5,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      1024,
			UpgradeOnLogin: true,
		},
		Account: AccountConfig{
			DefaultRole:         "member",
			SelfAssignableRoles: []string{"member", "employer"},
		},
		Cookie: CookieConfig{
			Name:     "authToken",
			Path:     "/",
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
		Notification: NotificationConfig{
			Async:       true,
			QueueSize:   256,
			Workers:     2,
			SendTimeout: 10 * time.Second,
			AppName:     "accountcore",
			ResetPath:   "/reset-password",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Account.SelfAssignableRoles = append([]string(nil), cfg.Account.SelfAssignableRoles...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// Token
	if c.Token.SessionTTL <= 0 {
		return errors.New("Token SessionTTL must be > 0")
	}
	if c.Token.ResetTTL <= 0 {
		return errors.New("Token ResetTTL must be > 0")
	}
	if c.Token.ResetTTL >= c.Token.SessionTTL {
		return errors.New("Token ResetTTL must be shorter than SessionTTL")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported Token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 9 {
		return errors.New("OTP Digits must be between 6 and 9")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxIssues <= 0 {
		return errors.New("OTP MaxIssues must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Account
	if strings.TrimSpace(c.Account.DefaultRole) == "" {
		return errors.New("Account DefaultRole is required")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name is required")
	}
	switch c.Cookie.SameSite {
	case http.SameSiteDefaultMode, http.SameSiteLaxMode, http.SameSiteStrictMode:
	case http.SameSiteNoneMode:
		if !c.Cookie.Secure {
			return errors.New("Cookie SameSite=None requires Secure")
		}
	default:
		return errors.New("Cookie SameSite is invalid")
	}

	// Notification
	if c.Notification.Async {
		if c.Notification.QueueSize <= 0 {
			return errors.New("Notification QueueSize must be > 0 when Async is true")
		}
		if c.Notification.Workers <= 0 {
			return errors.New("Notification Workers must be > 0 when Async is true")
		}
	}
	if c.Notification.SendTimeout < 0 {
		return errors.New("Notification SendTimeout must be >= 0")
	}
	if c.Notification.BaseURL != "" {
		u, err := url.Parse(c.Notification.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Notification BaseURL must be an absolute URL")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
