package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var (
	errNotReady      = errors.New("not ready")
	errMissing       = errors.New("missing")
	errExists        = errors.New("exists")
	errNotFound      = errors.New("not found")
	errVerified      = errors.New("already verified")
	errInvalidCode   = errors.New("invalid code")
	errExpired       = errors.New("expired")
	errExceeded      = errors.New("exceeded")
	errInvalidCreds  = errors.New("invalid credentials")
	errInvalidToken  = errors.New("invalid token")
	errResetRejected = errors.New("invalid or expired token")
	errPolicy        = errors.New("policy")
)

type fakeStore struct {
	mu   sync.Mutex
	byID map[string]AccountRecord
	next int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]AccountRecord{}}
}

func (s *fakeStore) find(identity string) (AccountRecord, bool) {
	for _, a := range s.byID {
		if a.Identity == identity {
			return a, true
		}
	}
	return AccountRecord{}, false
}

func (s *fakeStore) get(_ context.Context, identity string) (AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.find(identity)
	if !ok {
		return AccountRecord{}, errNotFound
	}
	return a, nil
}

func (s *fakeStore) getByID(_ context.Context, id string) (AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return AccountRecord{}, errNotFound
	}
	return a, nil
}

func (s *fakeStore) create(_ context.Context, rec AccountRecord) (AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.find(rec.Identity); ok {
		return AccountRecord{}, errExists
	}
	s.next++
	rec.ID = "acct-" + strings.Repeat("x", s.next)
	s.byID[rec.ID] = rec
	return rec, nil
}

func (s *fakeStore) update(_ context.Context, identity string, fn func(*AccountRecord) error) (AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.find(identity)
	if !ok {
		return AccountRecord{}, errNotFound
	}
	work := a
	if a.Challenge != nil {
		c := *a.Challenge
		work.Challenge = &c
	}
	if err := fn(&work); err != nil {
		return AccountRecord{}, err
	}
	s.byID[work.ID] = work
	return work, nil
}

type harness struct {
	now       time.Time
	store     *fakeStore
	delivered []string
	links     []string
	metrics   map[int]int
	tokens    map[string]TokenClaims
}

func newHarness() *harness {
	return &harness{
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		store:   newFakeStore(),
		metrics: map[int]int{},
		tokens:  map[string]TokenClaims{},
	}
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) inc(id int) { h.metrics[id]++ }

func (h *harness) mint(prefix string) func(AccountRecord) (SessionToken, error) {
	return func(a AccountRecord) (SessionToken, error) {
		v := prefix + "-" + a.ID + "-" + string(rune('a'+len(h.tokens)))
		h.tokens[v] = TokenClaims{TokenID: v, AccountID: a.ID, Identity: a.Identity, Epoch: a.TokenEpoch, ExpiresAt: h.now.Add(time.Hour)}
		return SessionToken{Value: v, ExpiresAt: h.now.Add(time.Hour)}, nil
	}
}

func (h *harness) verify(prefix string) func(string) (TokenClaims, error) {
	return func(v string) (TokenClaims, error) {
		c, ok := h.tokens[v]
		if !ok || !strings.HasPrefix(v, prefix+"-") {
			return TokenClaims{}, errInvalidToken
		}
		return c, nil
	}
}

func (h *harness) otpDeps() OTPDeps {
	return OTPDeps{
		Digits:    6,
		TTL:       15 * time.Minute,
		MaxIssues: 5,
		Now:       h.clock,
		NewCode: func(int) (string, error) {
			return "123456", nil
		},
		DigestCode:    func(c string) string { return "h:" + c },
		CodeMatches:   func(c, d string) bool { return d != "" && "h:"+c == d },
		UpdateAccount: h.store.update,
		DeliverCode: func(_ context.Context, a AccountRecord, code string, _ time.Duration) {
			h.delivered = append(h.delivered, a.Identity+":"+code)
		},
		IssueSession: h.mint("s"),
		MetricInc:    h.inc,
		Metrics: OTPMetrics{
			ChallengeIssued:           1,
			ChallengeAttemptsExceeded: 2,
			ChallengeReset:            3,
			VerifySuccess:             4,
			VerifyFailure:             5,
		},
		Errors: OTPErrors{
			EngineNotReady:   errNotReady,
			MissingFields:    errMissing,
			AccountNotFound:  errNotFound,
			AlreadyVerified:  errVerified,
			InvalidCode:      errInvalidCode,
			ChallengeExpired: errExpired,
			AttemptsExceeded: errExceeded,
		},
	}
}

func (h *harness) signupDeps() SignupDeps {
	otp := h.otpDeps()
	return SignupDeps{
		MinPasswordBytes:    2,
		MaxPasswordBytes:    64,
		DefaultRole:         "member",
		SelfAssignableRoles: []string{"member", "employer"},
		Now:                 h.clock,
		GetAccount:          h.store.get,
		CreateAccount:       h.store.create,
		HashPassword:        func(p string) (string, error) { return "hash:" + p, nil },
		IssueChallenge: func(ctx context.Context, identity string) (*ChallengeReceipt, error) {
			return RunIssueChallenge(ctx, identity, otp)
		},
		MetricInc: h.inc,
		Metrics:   SignupMetrics{SignupSuccess: 10, SignupDuplicate: 11, SignupResent: 12},
		Errors: SignupErrors{
			EngineNotReady:  errNotReady,
			MissingFields:   errMissing,
			AlreadyExists:   errExists,
			AccountNotFound: errNotFound,
			PasswordPolicy:  errPolicy,
		},
	}
}

func (h *harness) loginDeps() LoginDeps {
	return LoginDeps{
		GetAccount:    h.store.get,
		UpdateAccount: h.store.update,
		VerifyPassword: func(p, hash string) (bool, error) {
			return hash == "hash:"+p, nil
		},
		IssueSession: h.mint("s"),
		MetricInc:    h.inc,
		Metrics:      LoginMetrics{LoginSuccess: 20, LoginFailure: 21, PasswordUpgraded: 22},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			AccountNotFound:    errNotFound,
			InvalidCredentials: errInvalidCreds,
		},
	}
}

func (h *harness) sessionDeps() SessionDeps {
	return SessionDeps{
		EnforceEpoch:   true,
		VerifySession:  h.verify("s"),
		GetAccountByID: h.store.getByID,
		UpdateAccount:  h.store.update,
		Now:            h.clock,
		Errors: SessionErrors{
			EngineNotReady:  errNotReady,
			MissingFields:   errMissing,
			AccountNotFound: errNotFound,
			InvalidToken:    errInvalidToken,
		},
	}
}

func (h *harness) resetDeps() PasswordResetDeps {
	return PasswordResetDeps{
		MinPasswordBytes: 2,
		GetAccount:       h.store.get,
		UpdateAccount:    h.store.update,
		HashPassword:     func(p string) (string, error) { return "hash:" + p, nil },
		IssueReset:       h.mint("r"),
		VerifyReset:      h.verify("r"),
		DeliverLink: func(_ context.Context, a AccountRecord, tok SessionToken) {
			h.links = append(h.links, tok.Value)
		},
		Errors: PasswordResetErrors{
			EngineNotReady:        errNotReady,
			MissingFields:         errMissing,
			AccountNotFound:       errNotFound,
			InvalidOrExpiredToken: errResetRejected,
			PasswordPolicy:        errPolicy,
		},
	}
}

func (h *harness) signupVerified(t *testing.T, identity, pw string) AccountRecord {
	t.Helper()
	ctx := context.Background()
	if _, err := RunSignup(ctx, SignupRequest{Identity: identity, Password: pw}, h.signupDeps()); err != nil {
		t.Fatalf("signup: %v", err)
	}
	res, err := RunValidateChallenge(ctx, identity, "123456", h.otpDeps())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return res.Account
}

func TestIssueChallengeCountsAttemptsAndCaps(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res, err := RunSignup(ctx, SignupRequest{Identity: "a@x.io", Password: "pw"}, h.signupDeps())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !res.Created || res.Challenge.Attempts != 1 || res.Challenge.Remaining != 4 {
		t.Fatalf("unexpected signup result: %+v / %+v", res, res.Challenge)
	}

	for i := 2; i <= 5; i++ {
		r, err := RunIssueChallenge(ctx, "a@x.io", h.otpDeps())
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		if r.Attempts != i {
			t.Fatalf("expected attempts %d, got %d", i, r.Attempts)
		}
	}

	before, _ := h.store.get(ctx, "a@x.io")
	if _, err := RunIssueChallenge(ctx, "a@x.io", h.otpDeps()); !errors.Is(err, errExceeded) {
		t.Fatalf("expected attempts exceeded, got %v", err)
	}
	after, _ := h.store.get(ctx, "a@x.io")
	if *before.Challenge != *after.Challenge {
		t.Fatalf("challenge mutated on rejected issue: %+v -> %+v", before.Challenge, after.Challenge)
	}
	if h.metrics[2] != 1 {
		t.Fatalf("expected one attempts-exceeded metric, got %d", h.metrics[2])
	}
	if len(h.delivered) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(h.delivered))
	}
}

func TestIssueChallengeErrors(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := RunIssueChallenge(ctx, "ghost@x.io", h.otpDeps()); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := RunIssueChallenge(ctx, "", h.otpDeps()); !errors.Is(err, errMissing) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	h.signupVerified(t, "v@x.io", "pw")
	if _, err := RunIssueChallenge(ctx, "v@x.io", h.otpDeps()); !errors.Is(err, errVerified) {
		t.Fatalf("expected already verified, got %v", err)
	}
	if _, err := RunIssueChallenge(ctx, "v@x.io", OTPDeps{Errors: OTPErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestValidateChallengeOrdering(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := RunSignup(ctx, SignupRequest{Identity: "a@x.io", Password: "pw"}, h.signupDeps()); err != nil {
		t.Fatalf("signup: %v", err)
	}

	h.now = h.now.Add(16 * time.Minute)
	if _, err := RunValidateChallenge(ctx, "a@x.io", "000000", h.otpDeps()); !errors.Is(err, errInvalidCode) {
		t.Fatalf("mismatch after expiry should be invalid code, got %v", err)
	}
	if _, err := RunValidateChallenge(ctx, "a@x.io", "123456", h.otpDeps()); !errors.Is(err, errExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	acct, _ := h.store.get(ctx, "a@x.io")
	if acct.Verified || acct.Challenge == nil {
		t.Fatalf("failed validation must not mutate account: %+v", acct)
	}

	h.now = h.now.Add(-10 * time.Minute)
	res, err := RunValidateChallenge(ctx, "a@x.io", "123456", h.otpDeps())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Account.Verified || res.Account.Challenge != nil || res.Session.Value == "" {
		t.Fatalf("unexpected verify result: %+v", res)
	}
	if _, err := RunValidateChallenge(ctx, "a@x.io", "123456", h.otpDeps()); !errors.Is(err, errVerified) {
		t.Fatalf("expected already verified, got %v", err)
	}
}

func TestValidateChallengeWithoutChallenge(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := h.store.create(ctx, AccountRecord{Identity: "bare@x.io"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := RunValidateChallenge(ctx, "bare@x.io", "123456", h.otpDeps()); !errors.Is(err, errInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
}

func TestResetChallengeAttempts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := RunSignup(ctx, SignupRequest{Identity: "a@x.io", Password: "pw"}, h.signupDeps()); err != nil {
		t.Fatalf("signup: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := RunIssueChallenge(ctx, "a@x.io", h.otpDeps()); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	if err := RunResetChallengeAttempts(ctx, "a@x.io", h.otpDeps()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	r, err := RunIssueChallenge(ctx, "a@x.io", h.otpDeps())
	if err != nil {
		t.Fatalf("issue after reset: %v", err)
	}
	if r.Attempts != 1 {
		t.Fatalf("expected attempts restart at 1, got %d", r.Attempts)
	}
}

func TestSignupPaths(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	deps := h.signupDeps()

	if _, err := RunSignup(ctx, SignupRequest{Identity: "a@x.io"}, deps); !errors.Is(err, errMissing) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	if _, err := RunSignup(ctx, SignupRequest{Identity: "a@x.io", Password: "p"}, deps); !errors.Is(err, errPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}

	res, err := RunSignup(ctx, SignupRequest{Identity: "a@x.io", Password: "pw", Role: "employer", DisplayName: "A"}, deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Account.Role != "employer" || res.Account.Verified || res.Account.CredentialHash != "hash:pw" {
		t.Fatalf("unexpected account: %+v", res.Account)
	}

	res, err = RunSignup(ctx, SignupRequest{Identity: "b@x.io", Password: "pw", Role: "admin"}, deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Account.Role != "member" {
		t.Fatalf("non self-assignable role must fall back to default, got %q", res.Account.Role)
	}

	res, err = RunSignup(ctx, SignupRequest{Identity: "a@x.io", Password: "other"}, deps)
	if err != nil {
		t.Fatalf("resend signup: %v", err)
	}
	if res.Created || !res.ChallengeResent || res.Challenge.Attempts != 2 {
		t.Fatalf("expected resend result, got %+v", res)
	}
	acct, _ := h.store.get(ctx, "a@x.io")
	if acct.CredentialHash != "hash:pw" {
		t.Fatalf("resend must not replace credential hash")
	}

	h.signupVerified(t, "v@x.io", "pw")
	if _, err := RunSignup(ctx, SignupRequest{Identity: "v@x.io", Password: "pw"}, deps); !errors.Is(err, errExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestSignupCreateRaceFallsBackToExisting(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	deps := h.signupDeps()
	calls := 0
	deps.GetAccount = func(ctx context.Context, identity string) (AccountRecord, error) {
		calls++
		if calls == 1 {
			return AccountRecord{}, errNotFound
		}
		return h.store.get(ctx, identity)
	}
	if _, err := h.store.create(ctx, AccountRecord{Identity: "race@x.io", CredentialHash: "hash:first"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := RunSignup(ctx, SignupRequest{Identity: "race@x.io", Password: "pw"}, deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Created || !res.ChallengeResent {
		t.Fatalf("expected existing-account path, got %+v", res)
	}
}

func TestLoginCollapsesFailures(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.signupVerified(t, "v@x.io", "pw")
	if _, err := RunSignup(ctx, SignupRequest{Identity: "u@x.io", Password: "pw"}, h.signupDeps()); err != nil {
		t.Fatalf("signup: %v", err)
	}

	dummyCalls := 0
	deps := h.loginDeps()
	deps.VerifyDummy = func(string) { dummyCalls++ }

	cases := []struct {
		name, identity, password string
	}{
		{"empty", "", ""},
		{"unknown", "ghost@x.io", "pw"},
		{"wrong password", "v@x.io", "nope"},
		{"unverified", "u@x.io", "pw"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RunLogin(ctx, tc.identity, tc.password, deps); !errors.Is(err, errInvalidCreds) {
				t.Fatalf("expected invalid credentials, got %v", err)
			}
		})
	}
	if dummyCalls != 1 {
		t.Fatalf("expected dummy verify on unknown identity, got %d", dummyCalls)
	}
	if h.metrics[21] != len(cases) {
		t.Fatalf("expected %d login failures, got %d", len(cases), h.metrics[21])
	}
}

func TestLoginSuccessReadsProfileAndUpgrades(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.signupVerified(t, "v@x.io", "pw")

	var warned []string
	deps := h.loginDeps()
	deps.UpgradeOnLogin = true
	deps.NeedsUpgrade = func(hash string) bool { return strings.HasPrefix(hash, "hash:") }
	deps.HashPassword = func(p string) (string, error) { return "hash2:" + p, nil }
	deps.VerifyPassword = func(p, hash string) (bool, error) {
		return hash == "hash:"+p || hash == "hash2:"+p, nil
	}
	deps.ReadProfile = func(context.Context, AccountRecord) (any, error) {
		return nil, errors.New("profile backend down")
	}
	deps.Warn = func(msg string, _ ...any) { warned = append(warned, msg) }

	res, err := RunLogin(ctx, "v@x.io", "pw", deps)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Session.Value == "" || res.Profile != nil {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if len(warned) != 1 {
		t.Fatalf("expected profile failure to be logged once, got %v", warned)
	}
	acct, _ := h.store.get(ctx, "v@x.io")
	if acct.CredentialHash != "hash2:pw" {
		t.Fatalf("expected upgraded hash, got %q", acct.CredentialHash)
	}
	if h.metrics[22] != 1 {
		t.Fatalf("expected upgrade metric")
	}
}

func TestValidateSessionEnforcesEpoch(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	acct := h.signupVerified(t, "v@x.io", "pw")
	tok, _ := h.mint("s")(acct)

	claims, err := RunValidateSession(ctx, tok.Value, h.sessionDeps())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.AccountID != acct.ID || claims.Identity != "v@x.io" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if err := RunLogoutAll(ctx, tok.Value, h.sessionDeps()); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if _, err := RunValidateSession(ctx, tok.Value, h.sessionDeps()); !errors.Is(err, errInvalidToken) {
		t.Fatalf("expected revoked token, got %v", err)
	}

	lax := h.sessionDeps()
	lax.EnforceEpoch = false
	if _, err := RunValidateSession(ctx, tok.Value, lax); err != nil {
		t.Fatalf("epoch not enforced, expected success, got %v", err)
	}
	if _, err := RunValidateSession(ctx, "", h.sessionDeps()); !errors.Is(err, errInvalidToken) {
		t.Fatalf("expected invalid token for empty input, got %v", err)
	}
}

func TestPasswordResetLifecycle(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	acct := h.signupVerified(t, "v@x.io", "pw")
	session, _ := h.mint("s")(acct)

	if err := RunRequestPasswordReset(ctx, "ghost@x.io", h.resetDeps()); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := RunRequestPasswordReset(ctx, "v@x.io", h.resetDeps()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(h.links) != 1 {
		t.Fatalf("expected one delivered link, got %d", len(h.links))
	}
	token := h.links[0]

	if err := RunCompletePasswordReset(ctx, "", "new", h.resetDeps()); !errors.Is(err, errMissing) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	if err := RunCompletePasswordReset(ctx, session.Value, "new", h.resetDeps()); !errors.Is(err, errResetRejected) {
		t.Fatalf("session token must not reset password, got %v", err)
	}
	if err := RunCompletePasswordReset(ctx, token, "new", h.resetDeps()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	updated, _ := h.store.get(ctx, "v@x.io")
	if updated.CredentialHash != "hash:new" || updated.TokenEpoch != acct.TokenEpoch+1 {
		t.Fatalf("unexpected account after reset: %+v", updated)
	}
	if err := RunCompletePasswordReset(ctx, token, "again", h.resetDeps()); !errors.Is(err, errResetRejected) {
		t.Fatalf("reset token must be single use, got %v", err)
	}
	if _, err := RunValidateSession(ctx, session.Value, h.sessionDeps()); !errors.Is(err, errInvalidToken) {
		t.Fatalf("reset must revoke sessions, got %v", err)
	}
}
