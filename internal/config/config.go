// Package config loads accountd settings from ACCOUNTD_* environment
// variables, optionally layered over a YAML file.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore"
	"gopkg.in/yaml.v3"
)

// Store backends accepted in Config.Store.
const (
	StoreMemory    = "memory"
	StoreMiniredis = "miniredis"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
)

type Config struct {
	Env             string        `yaml:"env"`
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Store       string `yaml:"store"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPass   string `yaml:"redis_password"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
	DatabaseURL string `yaml:"database_url"`
	Migrate     bool   `yaml:"migrate"`

	Token TokenSettings `yaml:"token"`
	OTP   OTPSettings   `yaml:"otp"`

	AppName      string `yaml:"app_name"`
	BaseURL      string `yaml:"base_url"`
	ResetPath    string `yaml:"reset_path"`
	CookieSecure bool   `yaml:"cookie_secure"`

	SMTP SMTPSettings `yaml:"smtp"`
	Log  LogSettings  `yaml:"log"`

	AuditEnabled   bool `yaml:"audit_enabled"`
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// EphemeralSecret is set when no token secret was configured outside
	// production and a random one was generated. Sessions do not survive a
	// restart in that mode.
	EphemeralSecret bool `yaml:"-"`
}

type TokenSettings struct {
	Secret     string        `yaml:"secret"`
	KeyID      string        `yaml:"key_id"`
	Issuer     string        `yaml:"issuer"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	ResetTTL   time.Duration `yaml:"reset_ttl"`
}

type OTPSettings struct {
	Digits    int           `yaml:"digits"`
	TTL       time.Duration `yaml:"ttl"`
	MaxIssues int           `yaml:"max_issues"`
}

type SMTPSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// NotificationBodies logs full notification bodies, codes and reset
	// links included, when no SMTP host is set. Refused in production.
	NotificationBodies bool `yaml:"notification_bodies"`
}

// Default returns the development defaults.
func Default() Config {
	engine := accountcore.DefaultConfig()
	return Config{
		Env:             "development",
		HTTPAddr:        ":8080",
		ShutdownTimeout: 10 * time.Second,
		Store:           StoreMemory,
		RedisAddr:       "127.0.0.1:6379",
		RedisPrefix:     "acct",
		Token: TokenSettings{
			Issuer:     engine.Token.Issuer,
			SessionTTL: engine.Token.SessionTTL,
			ResetTTL:   engine.Token.ResetTTL,
		},
		OTP: OTPSettings{
			Digits:    engine.OTP.Digits,
			TTL:       engine.OTP.TTL,
			MaxIssues: engine.OTP.MaxIssues,
		},
		AppName:        engine.Notification.AppName,
		ResetPath:      engine.Notification.ResetPath,
		CookieSecure:   true,
		SMTP:           SMTPSettings{Port: 587},
		Log:            LogSettings{Level: "info", Format: "text"},
		AuditEnabled:   true,
		MetricsEnabled: true,
	}
}

// Load builds a Config from defaults, then the YAML file named by
// ACCOUNTD_CONFIG_FILE (if set), then ACCOUNTD_* variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ACCOUNTD_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.Token.Secret == "" && !cfg.IsProduction() {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Token.Secret = secret
		cfg.EphemeralSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Env, "ACCOUNTD_ENV")
	setString(&cfg.HTTPAddr, "ACCOUNTD_HTTP_ADDR")
	setString(&cfg.Store, "ACCOUNTD_STORE")
	setString(&cfg.RedisAddr, "ACCOUNTD_REDIS_ADDR")
	setString(&cfg.RedisPass, "ACCOUNTD_REDIS_PASSWORD")
	setString(&cfg.RedisPrefix, "ACCOUNTD_REDIS_PREFIX")
	setString(&cfg.DatabaseURL, "ACCOUNTD_DATABASE_URL")
	setString(&cfg.Token.Secret, "ACCOUNTD_TOKEN_SECRET")
	setString(&cfg.Token.KeyID, "ACCOUNTD_TOKEN_KEY_ID")
	setString(&cfg.Token.Issuer, "ACCOUNTD_TOKEN_ISSUER")
	setString(&cfg.AppName, "ACCOUNTD_APP_NAME")
	setString(&cfg.BaseURL, "ACCOUNTD_BASE_URL")
	setString(&cfg.ResetPath, "ACCOUNTD_RESET_PATH")
	setString(&cfg.SMTP.Host, "ACCOUNTD_SMTP_HOST")
	setString(&cfg.SMTP.Username, "ACCOUNTD_SMTP_USER")
	setString(&cfg.SMTP.Password, "ACCOUNTD_SMTP_PASS")
	setString(&cfg.SMTP.From, "ACCOUNTD_SMTP_FROM")
	setString(&cfg.Log.Level, "ACCOUNTD_LOG_LEVEL")
	setString(&cfg.Log.Format, "ACCOUNTD_LOG_FORMAT")

	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	collect(setInt(&cfg.RedisDB, "ACCOUNTD_REDIS_DB"))
	collect(setInt(&cfg.SMTP.Port, "ACCOUNTD_SMTP_PORT"))
	collect(setInt(&cfg.OTP.Digits, "ACCOUNTD_OTP_DIGITS"))
	collect(setInt(&cfg.OTP.MaxIssues, "ACCOUNTD_OTP_MAX_ISSUES"))
	collect(setBool(&cfg.Migrate, "ACCOUNTD_MIGRATE"))
	collect(setBool(&cfg.CookieSecure, "ACCOUNTD_COOKIE_SECURE"))
	collect(setBool(&cfg.AuditEnabled, "ACCOUNTD_AUDIT_ENABLED"))
	collect(setBool(&cfg.MetricsEnabled, "ACCOUNTD_METRICS_ENABLED"))
	collect(setBool(&cfg.Log.NotificationBodies, "ACCOUNTD_LOG_NOTIFICATION_BODIES"))
	collect(setDuration(&cfg.ShutdownTimeout, "ACCOUNTD_SHUTDOWN_TIMEOUT"))
	collect(setDuration(&cfg.Token.SessionTTL, "ACCOUNTD_SESSION_TTL"))
	collect(setDuration(&cfg.Token.ResetTTL, "ACCOUNTD_RESET_TTL"))
	collect(setDuration(&cfg.OTP.TTL, "ACCOUNTD_OTP_TTL"))

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// IsProduction reports whether Env is "production" or "prod".
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "production", "prod":
		return true
	}
	return false
}

// Validate reports every invalid server-level setting. Engine-level checks
// run in accountcore.Config.Validate.
func (c *Config) Validate() error {
	var errs []string
	if c.HTTPAddr == "" {
		errs = append(errs, "ACCOUNTD_HTTP_ADDR is required")
	}
	switch c.Store {
	case StoreMemory, StoreMiniredis:
		if c.IsProduction() {
			errs = append(errs, "ACCOUNTD_STORE "+c.Store+" is not allowed in production")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, "ACCOUNTD_REDIS_ADDR is required for the redis store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "ACCOUNTD_DATABASE_URL is required for the postgres store")
		}
	default:
		errs = append(errs, fmt.Sprintf("ACCOUNTD_STORE %q is not one of memory, miniredis, redis, postgres", c.Store))
	}
	if len(c.Token.Secret) < 32 {
		errs = append(errs, "ACCOUNTD_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.IsProduction() && !c.CookieSecure {
		errs = append(errs, "ACCOUNTD_COOKIE_SECURE cannot be false in production")
	}
	if c.IsProduction() && c.BaseURL == "" {
		errs = append(errs, "ACCOUNTD_BASE_URL is required in production")
	}
	if c.IsProduction() && c.Log.NotificationBodies {
		errs = append(errs, "ACCOUNTD_LOG_NOTIFICATION_BODIES cannot be enabled in production")
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, "ACCOUNTD_SMTP_FROM is required when ACCOUNTD_SMTP_HOST is set")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "ACCOUNTD_SHUTDOWN_TIMEOUT must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Engine maps c onto an accountcore.Config and validates it.
func (c *Config) Engine() (accountcore.Config, error) {
	out := accountcore.DefaultConfig()
	out.Token.PrivateKey = []byte(c.Token.Secret)
	out.Token.KeyID = c.Token.KeyID
	if c.Token.Issuer != "" {
		out.Token.Issuer = c.Token.Issuer
	}
	out.Token.SessionTTL = c.Token.SessionTTL
	out.Token.ResetTTL = c.Token.ResetTTL

	out.OTP.Digits = c.OTP.Digits
	out.OTP.TTL = c.OTP.TTL
	out.OTP.MaxIssues = c.OTP.MaxIssues

	out.Cookie.Secure = c.CookieSecure
	out.Notification.AppName = c.AppName
	out.Notification.BaseURL = c.BaseURL
	out.Notification.ResetPath = c.ResetPath

	out.Audit.Enabled = c.AuditEnabled
	out.Metrics.Enabled = c.MetricsEnabled
	out.Metrics.EnableLatencyHistograms = c.MetricsEnabled

	if err := out.Validate(); err != nil {
		return accountcore.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return out, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}

func randomSecret() (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
