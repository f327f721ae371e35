package accountcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/accountcore/internal/audit"
	"github.com/MrEthical07/accountcore/internal/flows"
	"github.com/MrEthical07/accountcore/jwt"
	"github.com/MrEthical07/accountcore/notify"
	"github.com/MrEthical07/accountcore/password"
)

// Builder collects configuration and collaborators for an Engine.
//
// Builder instances are intended to be configured during initialization and
// then used exactly once through Build.
type Builder struct {
	config Config

	store    CredentialStore
	sender   notify.Sender
	profiles ProfileReader

	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder configuration with a deep copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the channel used to deliver codes and reset links.
// Without one, messages are discarded.
func (b *Builder) WithNotifier(sender notify.Sender) *Builder {
	b.sender = sender
	return b
}

// WithProfileReader sets the optional profile source used by Login.
func (b *Builder) WithProfileReader(pr ProfileReader) *Builder {
	b.profiles = pr
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink only receives events when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for challenge expiry and token
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms enables the session validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
//
// Build may return an error when configuration validation fails or a required
// collaborator is missing. A Builder can only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		profiles: b.profiles,
		logger:   logger,
		clock:    clock,
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev audit.Event) {
			logger.Warn("audit event dropped", "event", ev.EventType, "account_id", ev.AccountID)
		},
	}, b.auditSink)

	// -------- PASSWORD HASHER --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
		MaxPasswordBytes: cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// -------- TOKEN ISSUER --------
	issuer, err := jwt.NewIssuer(jwt.Config{
		SessionTTL:    cfg.Token.SessionTTL,
		ResetTTL:      cfg.Token.ResetTTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
		VerifyKeys:    cfg.Token.VerifyKeys,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}
	engine.issuer = issuer

	// -------- NOTIFICATIONS --------
	engine.notifier = notify.NewDispatcher(notify.Config{
		Async:       cfg.Notification.Async,
		QueueSize:   cfg.Notification.QueueSize,
		Workers:     cfg.Notification.Workers,
		SendTimeout: cfg.Notification.SendTimeout,
	}, b.sender, logger, engine.notifyObserver())

	engine.flows = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}
