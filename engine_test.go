package accountcore_test

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/notify"
	"github.com/MrEthical07/accountcore/store/memstore"
)

var (
	codePattern  = regexp.MustCompile(`verification code is: (\d+)`)
	tokenPattern = regexp.MustCompile(`token=(\S+)`)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail bool
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	if n.fail {
		return errors.New("smtp unreachable")
	}
	return nil
}

func (n *recordingNotifier) count(kind notify.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.msgs {
		if m.Kind == kind {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) last(t testing.TB, kind notify.Kind) notify.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.msgs) - 1; i >= 0; i-- {
		if n.msgs[i].Kind == kind {
			return n.msgs[i]
		}
	}
	t.Fatalf("no %s message recorded", kind)
	return notify.Message{}
}

func (n *recordingNotifier) lastCode(t testing.TB) string {
	t.Helper()
	m := codePattern.FindStringSubmatch(n.last(t, notify.KindVerificationCode).Body)
	if m == nil {
		t.Fatal("verification message carries no code")
	}
	return m[1]
}

func (n *recordingNotifier) lastResetToken(t testing.TB) string {
	t.Helper()
	m := tokenPattern.FindStringSubmatch(n.last(t, notify.KindPasswordReset).Body)
	if m == nil {
		t.Fatal("reset message carries no link")
	}
	tok, err := url.QueryUnescape(m[1])
	if err != nil {
		t.Fatalf("unescape token: %v", err)
	}
	return tok
}

func testConfig() accountcore.Config {
	cfg := accountcore.DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.KeyID = "k1"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 1
	cfg.Notification.Async = false
	cfg.Notification.BaseURL = "https://jobs.example.com"
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine   *accountcore.Engine
	store    *memstore.Store
	notifier *recordingNotifier
	clock    *fakeClock
}

func newTestEnv(t testing.TB, mutate ...func(*accountcore.Config, *accountcore.Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memstore.New(),
		notifier: &recordingNotifier{},
		clock:    newFakeClock(),
	}
	cfg := testConfig()
	b := accountcore.New().
		WithStore(env.store).
		WithNotifier(env.notifier).
		WithClock(env.clock.Now)
	for _, m := range mutate {
		m(&cfg, b)
	}

	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// signupVerified registers identity and completes OTP verification.
func (env *testEnv) signupVerified(t testing.TB, identity, password string) *accountcore.VerifyResult {
	t.Helper()
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, accountcore.SignupRequest{DisplayName: "Test", Identity: identity, Password: password}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	res, err := env.engine.VerifyOTP(ctx, identity, env.notifier.lastCode(t))
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	return res
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := accountcore.New().WithConfig(testConfig()).Build()
	if err == nil {
		t.Fatal("expected error without credential store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := accountcore.New().WithConfig(testConfig()).WithStore(memstore.New())
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestZeroEngineNotReady(t *testing.T) {
	var e accountcore.Engine
	if _, err := e.Login(context.Background(), "a@example.com", "p1"); !errors.Is(err, accountcore.ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestSignupCreatesUnverifiedAccountAndSendsCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.Signup(ctx, accountcore.SignupRequest{
		DisplayName: "Ada",
		Identity:    "  Ada@Example.COM ",
		Password:    "p1",
		Role:        "employer",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if !res.Created || res.ChallengeResent {
		t.Fatalf("expected created result, got %+v", res)
	}
	if res.Account.Identity != "ada@example.com" || res.Account.Verified || res.Account.Role != "employer" {
		t.Fatalf("unexpected account view: %+v", res.Account)
	}
	if res.Challenge == nil || res.Challenge.Attempts != 1 || res.Challenge.Remaining != 4 {
		t.Fatalf("unexpected receipt: %+v", res.Challenge)
	}
	if !res.Challenge.ExpiresAt.Equal(env.clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", res.Challenge.ExpiresAt)
	}

	code := env.notifier.lastCode(t)
	if len(code) != 6 || code[0] == '0' {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	stored, err := env.store.GetByIdentity(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("store lookup failed: %v", err)
	}
	if stored.Challenge == nil || stored.Challenge.CodeHash == code {
		t.Fatal("challenge must be stored as a digest")
	}
	if stored.CredentialHash == "p1" || stored.CredentialHash == "" {
		t.Fatal("password must be stored hashed")
	}
}

func TestSignupRoleFallsBackToDefault(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.engine.Signup(context.Background(), accountcore.SignupRequest{Identity: "a@example.com", Password: "p1", Role: "admin"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if res.Account.Role != "member" {
		t.Fatalf("expected default role, got %q", res.Account.Role)
	}
}

func TestSignupMissingFields(t *testing.T) {
	env := newTestEnv(t)
	for _, req := range []accountcore.SignupRequest{
		{Identity: "", Password: "p1"},
		{Identity: "a@example.com", Password: ""},
		{Identity: "   ", Password: "p1"},
	} {
		if _, err := env.engine.Signup(context.Background(), req); !errors.Is(err, accountcore.ErrMissingFields) {
			t.Fatalf("expected ErrMissingFields for %+v, got %v", req, err)
		}
	}
}

func TestSignupPasswordPolicy(t *testing.T) {
	env := newTestEnv(t, func(cfg *accountcore.Config, _ *accountcore.Builder) {
		cfg.Password.MinLength = 8
	})
	if _, err := env.engine.Signup(context.Background(), accountcore.SignupRequest{Identity: "a@example.com", Password: "short"}); !errors.Is(err, accountcore.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestSignupExistingVerifiedAccount(t *testing.T) {
	env := newTestEnv(t)
	env.signupVerified(t, "a@example.com", "p1")

	if _, err := env.engine.Signup(context.Background(), accountcore.SignupRequest{Identity: "a@example.com", Password: "p2"}); !errors.Is(err, accountcore.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSignupExistingUnverifiedResendsChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, accountcore.SignupRequest{Identity: "a@example.com", Password: "p1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	before, _ := env.store.GetByIdentity(ctx, "a@example.com")

	res, err := env.engine.Signup(ctx, accountcore.SignupRequest{Identity: "a@example.com", Password: "other"})
	if err != nil {
		t.Fatalf("second Signup failed: %v", err)
	}
	if res.Created || !res.ChallengeResent || res.Challenge.Attempts != 2 {
		t.Fatalf("expected resend result, got %+v", res)
	}
	after, _ := env.store.GetByIdentity(ctx, "a@example.com")
	if after.CredentialHash != before.CredentialHash {
		t.Fatal("resend must not overwrite the stored credential")
	}
	if env.notifier.count(notify.KindVerificationCode) != 2 {
		t.Fatal("expected two verification messages")
	}
}

func TestSignupPlusFourResendsThenExceeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, accountcore.SignupRequest{Identity: "a@example.com", Password: "p1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := env.engine.ResendOTP(ctx, "a@example.com"); err != nil {
			t.Fatalf("resend %d failed: %v", i+1, err)
		}
	}
	before, _ := env.store.GetByIdentity(ctx, "a@example.com")

	if _, err := env.engine.ResendOTP(ctx, "a@example.com"); !errors.Is(err, accountcore.ErrAttemptsExceeded) {
		t.Fatalf("expected ErrAttemptsExceeded, got %v", err)
	}

	after, _ := env.store.GetByIdentity(ctx, "a@example.com")
	if after.Challenge.Attempts != 5 || after.Challenge.CodeHash != before.Challenge.CodeHash || !after.Challenge.ExpiresAt.Equal(before.Challenge.ExpiresAt) {
		t.Fatalf("rejected issue must leave the challenge unchanged: %+v -> %+v", before.Challenge, after.Challenge)
	}
	if got := env.engine.MetricsSnapshot().Counters[accountcore.MetricChallengeAttemptsExceeded]; got != 1 {
		t.Fatalf("expected one attempts-exceeded metric, got %d", got)
	}
}

func TestIssueChallengeErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.IssueChallenge(ctx, "ghost@example.com"); !errors.Is(err, accountcore.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	env.signupVerified(t, "v@example.com", "p1")
	if _, err := env.engine.IssueChallenge(ctx, "v@example.com"); !errors.Is(err, accountcore.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestResetChallengeAttemptsAllowsNewCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, accountcore.SignupRequest{Identity: "a@example.com", Password: "p1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := env.engine.ResendOTP(ctx, "a@example.com"); err != nil {
			t.Fatalf("resend failed: %v", err)
		}
	}
	if err := env.engine.ResetChallengeAttempts(ctx, "a@example.com"); err != nil {
		t.Fatalf("ResetChallengeAttempts failed: %v", err)
	}
	r, err := env.engine.ResendOTP(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("resend after reset failed: %v", err)
	}
	if r.Attempts != 1 {
		t.Fatalf("expected attempts=1 after reset, got %d", r.Attempts)
	}
}

func TestDeliveryFailureIsNotReturned(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.fail = true

	if _, err := env.engine.Signup(context.Background(), accountcore.SignupRequest{Identity: "a@example.com", Password: "p1"}); err != nil {
		t.Fatalf("delivery failure leaked into Signup: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[accountcore.MetricNotificationFailed]; got != 1 {
		t.Fatalf("expected one failed notification metric, got %d", got)
	}
}

func TestVerifyOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, accountcore.SignupRequest{Identity: "a@example.com", Password: "p1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	code := env.notifier.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	if _, err := env.engine.VerifyOTP(ctx, "ghost@example.com", code); !errors.Is(err, accountcore.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := env.engine.VerifyOTP(ctx, "a@example.com", wrong); !errors.Is(err, accountcore.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}

	res, err := env.engine.VerifyOTP(ctx, "A@example.com", " "+code+" ")
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if !res.Account.Verified || res.Session.Value == "" {
		t.Fatalf("unexpected verify result: %+v", res)
	}
	stored, _ := env.store.GetByIdentity(ctx, "a@example.com")
	if !stored.Verified || stored.Challenge != nil {
		t.Fatalf("expected verified account with cleared challenge, got %+v", stored)
	}

	claims, err := env.engine.ValidateSession(ctx, res.Session.Value)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if claims.Identity != "a@example.com" || claims.AccountID != stored.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := env.engine.VerifyOTP(ctx, "a@example.com", code); !errors.Is(err, accountcore.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestVerifyOTPExpiryOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, accountcore.SignupRequest{Identity: "a@example.com", Password: "p1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	code := env.notifier.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	env.clock.Advance(15*time.Minute + time.Second)

	if _, err := env.engine.VerifyOTP(ctx, "a@example.com", wrong); !errors.Is(err, accountcore.ErrInvalidCode) {
		t.Fatalf("mismatched code after expiry: expected ErrInvalidCode, got %v", err)
	}
	if _, err := env.engine.VerifyOTP(ctx, "a@example.com", code); !errors.Is(err, accountcore.ErrChallengeExpired) {
		t.Fatalf("matching code after expiry: expected ErrChallengeExpired, got %v", err)
	}
	stored, _ := env.store.GetByIdentity(ctx, "a@example.com")
	if stored.Verified {
		t.Fatal("expired challenge must not verify the account")
	}
}

func TestVerifiedOnlyThroughValidateChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, accountcore.SignupRequest{Identity: "a@example.com", Password: "p1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, err := env.engine.ResendOTP(ctx, "a@example.com"); err != nil {
		t.Fatalf("ResendOTP failed: %v", err)
	}
	if err := env.engine.RequestPasswordReset(ctx, "a@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if err := env.engine.CompletePasswordReset(ctx, env.notifier.lastResetToken(t), "p2"); err != nil {
		t.Fatalf("CompletePasswordReset failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "a@example.com", "p2"); !errors.Is(err, accountcore.ErrInvalidCredentials) {
		t.Fatalf("expected unverified login to fail, got %v", err)
	}
	stored, _ := env.store.GetByIdentity(ctx, "a@example.com")
	if stored.Verified {
		t.Fatal("only ValidateChallenge may set Verified")
	}
}

func TestSecurityReport(t *testing.T) {
	env := newTestEnv(t)
	report := env.engine.SecurityReport()

	if report.SigningAlgorithm != "hs256" || report.KeyID != "k1" {
		t.Fatalf("unexpected signing settings: %+v", report)
	}
	if report.OTPMaxIssues != 5 || report.OTPDigits != 6 {
		t.Fatalf("unexpected otp settings: %+v", report)
	}
	if !report.EpochEnforced || report.Argon2.Memory != 8*1024 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.AsyncNotifications {
		t.Fatal("test engine runs synchronous notifications")
	}
}
