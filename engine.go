package accountcore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore/internal/audit"
	"github.com/MrEthical07/accountcore/internal/flows"
	"github.com/MrEthical07/accountcore/jwt"
	"github.com/MrEthical07/accountcore/notify"
	"github.com/MrEthical07/accountcore/password"
)

// Engine runs every account operation: signup, OTP verification, login,
// session validation, logout and password reset.
//
// Engine instances are built once through Builder and are safe for
// concurrent use.
type Engine struct {
	config       Config
	store        CredentialStore
	profiles     ProfileReader
	passwordHash *password.Argon2
	issuer       *jwt.Issuer
	notifier     *notify.Dispatcher
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	clock        func() time.Time
	flows        flows.Service
}

// Close drains the notification and audit dispatchers. Operations called
// after Close still run but their notifications and audit events are dropped.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notifier != nil {
		e.notifier.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// NotificationDropped returns the number of messages dropped on a full
// notification queue.
func (e *Engine) NotificationDropped() uint64 {
	if e == nil || e.notifier == nil {
		return 0
	}
	return e.notifier.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.flows.Initialized()
}

// NormalizeIdentity trims surrounding whitespace and lower-cases identity.
// Every engine operation applies it before touching the store.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

/*
====================================
RECORD CONVERSION
====================================
*/

func toRecord(a Account) flows.AccountRecord {
	rec := flows.AccountRecord{
		ID:             a.ID,
		Identity:       a.Identity,
		CredentialHash: a.CredentialHash,
		DisplayName:    a.DisplayName,
		Role:           a.Role,
		Verified:       a.Verified,
		TokenEpoch:     a.TokenEpoch,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.Challenge != nil {
		rec.Challenge = &flows.ChallengeRecord{
			CodeHash:  a.Challenge.CodeHash,
			ExpiresAt: a.Challenge.ExpiresAt,
			Attempts:  a.Challenge.Attempts,
		}
	}
	return rec
}

func fromRecord(rec flows.AccountRecord) Account {
	a := Account{
		ID:             rec.ID,
		Identity:       rec.Identity,
		CredentialHash: rec.CredentialHash,
		DisplayName:    rec.DisplayName,
		Role:           rec.Role,
		Verified:       rec.Verified,
		TokenEpoch:     rec.TokenEpoch,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.Challenge != nil {
		a.Challenge = &OTPChallenge{
			CodeHash:  rec.Challenge.CodeHash,
			ExpiresAt: rec.Challenge.ExpiresAt,
			Attempts:  rec.Challenge.Attempts,
		}
	}
	return a
}

func toReceipt(r *flows.ChallengeReceipt) *ChallengeReceipt {
	if r == nil {
		return nil
	}
	return &ChallengeReceipt{ExpiresAt: r.ExpiresAt, Attempts: r.Attempts, Remaining: r.Remaining}
}

/*
====================================
STORE ADAPTERS
====================================
*/

func (e *Engine) getAccount(ctx context.Context, identity string) (flows.AccountRecord, error) {
	a, err := e.store.GetByIdentity(ctx, identity)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(a), nil
}

func (e *Engine) getAccountByID(ctx context.Context, id string) (flows.AccountRecord, error) {
	a, err := e.store.GetByID(ctx, id)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(a), nil
}

func (e *Engine) createAccount(ctx context.Context, rec flows.AccountRecord) (flows.AccountRecord, error) {
	a, err := e.store.Create(ctx, fromRecord(rec))
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(a), nil
}

func (e *Engine) updateAccount(ctx context.Context, identity string, fn func(*flows.AccountRecord) error) (flows.AccountRecord, error) {
	a, err := e.store.Update(ctx, identity, func(acct *Account) error {
		rec := toRecord(*acct)
		if err := fn(&rec); err != nil {
			return err
		}
		updated := fromRecord(rec)
		updated.UpdatedAt = e.now().UTC()
		*acct = updated
		return nil
	})
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(a), nil
}
