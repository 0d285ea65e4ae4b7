package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"passwordless-auth/internal/audit"
	auditdomain "passwordless-auth/internal/audit/domain"
	"passwordless-auth/internal/refreshtoken/domain"
	"passwordless-auth/internal/refreshtoken/repository"
	"passwordless-auth/internal/security"
	userdomain "passwordless-auth/internal/user/domain"
	userrepo "passwordless-auth/internal/user/repository"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) LogEvent(ctx context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

func (r *recordingAudit) find(action string) *audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].Action == action {
			e := r.events[i]
			return &e
		}
	}
	return nil
}

type fixture struct {
	issuer *Issuer
	svc    *RotationService
	repo   *repository.MemoryRepository
	users  *userrepo.MemoryRepository
	audit  *recordingAudit
	user   *userdomain.User
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users := userrepo.NewMemoryRepository()
	rec := &recordingAudit{}
	issuer := NewIssuer(repo, security.NewTestTokenProvider(), security.NewHasher(4), []byte("test-lookup-key-0123456789abcdef"), 30*24*time.Hour)
	svc := NewRotationService(issuer, repo, users, rec)
	user := &userdomain.User{ID: "user-1", Email: "user@example.com", Role: userdomain.RoleCustomer, EmailVerified: true}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	f := &fixture{issuer: issuer, svc: svc, repo: repo, users: users, audit: rec, user: user, now: time.Now().UTC()}
	clock := func() time.Time { return f.now }
	issuer.nowF = clock
	svc.nowF = clock
	return f
}

var testDevice = domain.Device{IP: "203.0.113.7", UserAgent: "test-agent"}

func TestIssueTokenPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	if pair.UserID != f.user.ID || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("pair = %+v", pair)
	}
	claims := f.issuer.VerifyAccessToken(pair.AccessToken)
	if claims == nil {
		t.Fatal("access token should verify")
	}
	if claims.UserID() != f.user.ID || claims.Role != string(userdomain.RoleCustomer) {
		t.Errorf("claims sub=%q role=%q", claims.UserID(), claims.Role)
	}
	if !pair.RefreshExpiresAt.Equal(f.now.Add(30 * 24 * time.Hour)) {
		t.Errorf("RefreshExpiresAt = %v", pair.RefreshExpiresAt)
	}

	rec, err := f.repo.GetByLookupHash(ctx, f.issuer.lookup(pair.RefreshToken))
	if err != nil || rec == nil {
		t.Fatalf("stored token not found: %v", err)
	}
	if rec.TokenHash == pair.RefreshToken || rec.LookupHash == pair.RefreshToken {
		t.Error("plaintext must not be stored")
	}
	if rec.ParentTokenID != nil {
		t.Error("login token must have no parent")
	}
	if rec.IPAddress != testDevice.IP || rec.UserAgent != testDevice.UserAgent {
		t.Errorf("device = %q %q", rec.IPAddress, rec.UserAgent)
	}
	if len(pair.RefreshToken) != 64 {
		t.Errorf("refresh token length = %d, want 64 hex chars", len(pair.RefreshToken))
	}
}

func TestIssueTokenPair_NilUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.issuer.IssueTokenPair(context.Background(), nil, testDevice); err == nil {
		t.Fatal("expected error for nil user")
	}
}

func TestVerifyAccessToken_Invalid(t *testing.T) {
	f := newFixture(t)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if c := f.issuer.VerifyAccessToken(tok); c != nil {
			t.Errorf("VerifyAccessToken(%q) = %+v, want nil", tok, c)
		}
	}
	tok, _, err := f.issuer.IssueAccessToken("user-1", "CUSTOMER")
	if err != nil {
		t.Fatal(err)
	}
	rsa, err := security.NewTestRSATokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	rsaIssuer := NewIssuer(f.repo, rsa, security.NewHasher(4), nil, time.Hour)
	if rsaIssuer.VerifyAccessToken(tok) != nil {
		t.Error("HS256 token must not verify under RS256 provider")
	}
}

func TestRotate_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	if err != nil {
		t.Fatal(err)
	}
	old, _ := f.repo.GetByLookupHash(ctx, f.issuer.lookup(pair.RefreshToken))

	next, err := f.svc.Rotate(ctx, pair.RefreshToken, testDevice)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("rotation must issue a new refresh token")
	}
	if next.UserID != f.user.ID || f.issuer.VerifyAccessToken(next.AccessToken) == nil {
		t.Errorf("bad pair %+v", next)
	}

	oldNow, _ := f.repo.GetByID(ctx, old.ID)
	if !oldNow.IsRevoked || oldNow.RevokedAt == nil {
		t.Error("old token should be revoked")
	}
	child, _ := f.repo.GetByLookupHash(ctx, f.issuer.lookup(next.RefreshToken))
	if child == nil || child.ParentTokenID == nil || *child.ParentTokenID != old.ID {
		t.Fatalf("child parent = %v, want %s", child, old.ID)
	}
	if child.IsRevoked {
		t.Error("child should be active")
	}
	ev := f.audit.find(auditdomain.ActionTokenRefreshed)
	if ev == nil || ev.UserID != f.user.ID || ev.ResourceID != child.ID {
		t.Errorf("token_refreshed audit = %+v", ev)
	}

	// chain continues from the child
	if _, err := f.svc.Rotate(ctx, next.RefreshToken, testDevice); err != nil {
		t.Fatalf("second Rotate: %v", err)
	}
}

func TestRotate_ReuseRevokesAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	if err != nil {
		t.Fatal(err)
	}
	other, err := f.issuer.IssueTokenPair(ctx, f.user, domain.Device{UserAgent: "other"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Rotate(ctx, first.RefreshToken, testDevice)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Rotate(ctx, first.RefreshToken, domain.Device{IP: "198.51.100.1"})
	if !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("err = %v, want ErrTokenReuseDetected", err)
	}
	if errors.Is(err, ErrInvalidRefreshToken) {
		t.Error("reuse must be distinguishable from invalid")
	}

	active, err := f.svc.ListActive(ctx, f.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("active tokens = %d, want 0", len(active))
	}
	ev := f.audit.find(auditdomain.ActionTokenReuseDetected)
	if ev == nil || ev.Severity != auditdomain.SeverityHigh || ev.IP != "198.51.100.1" {
		t.Errorf("reuse audit = %+v", ev)
	}
	if ev != nil && ev.Details["revokedCount"] != int64(2) {
		t.Errorf("revokedCount = %v, want 2", ev.Details["revokedCount"])
	}

	// revoked descendants and siblings no longer rotate
	for _, tok := range []string{second.RefreshToken, other.RefreshToken} {
		_, err := f.svc.Rotate(ctx, tok, testDevice)
		if !errors.Is(err, ErrInvalidRefreshToken) || InvalidReason(err) != ReasonRevoked {
			t.Errorf("Rotate after reuse err = %v (reason %q), want revoked", err, InvalidReason(err))
		}
	}
}

func TestRotate_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Rotate(ctx, "", testDevice)
	if InvalidReason(err) != ReasonMissing {
		t.Errorf("empty: err = %v", err)
	}
	_, err = f.svc.Rotate(ctx, "deadbeef", testDevice)
	if !errors.Is(err, ErrInvalidRefreshToken) || InvalidReason(err) != ReasonNotFound {
		t.Errorf("unknown: err = %v", err)
	}
	if err != nil && err.Error() != ErrInvalidRefreshToken.Error() {
		t.Errorf("message = %q, want generic", err.Error())
	}

	// lookup digest matches but bcrypt digest belongs to another secret
	hash, _ := security.NewHasher(4).Hash("something-else")
	if err := f.repo.Create(ctx, &domain.RefreshToken{
		ID: "forged", UserID: f.user.ID, LookupHash: f.issuer.lookup("forged-secret"),
		TokenHash: hash, ExpiresAt: f.now.Add(time.Hour), CreatedAt: f.now,
	}); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Rotate(ctx, "forged-secret", testDevice)
	if InvalidReason(err) != ReasonMismatch {
		t.Errorf("mismatch: err = %v", err)
	}
}

func TestRotate_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	if err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(31 * 24 * time.Hour)
	_, err = f.svc.Rotate(ctx, pair.RefreshToken, testDevice)
	if InvalidReason(err) != ReasonExpired {
		t.Fatalf("err = %v, want expired", err)
	}
	rec, _ := f.repo.GetByLookupHash(ctx, f.issuer.lookup(pair.RefreshToken))
	if rec.IsRevoked {
		t.Error("expired token must not be mutated")
	}
	if len(f.audit.actions()) != 0 {
		t.Errorf("audit = %v, want none", f.audit.actions())
	}
}

func TestRotate_LoggedOutTokenIsNotReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, _ := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	keep, _ := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	if err := f.svc.Revoke(ctx, pair.RefreshToken, testDevice); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	_, err := f.svc.Rotate(ctx, pair.RefreshToken, testDevice)
	if InvalidReason(err) != ReasonRevoked {
		t.Fatalf("err = %v, want revoked", err)
	}
	if _, err := f.svc.Rotate(ctx, keep.RefreshToken, testDevice); err != nil {
		t.Errorf("other session should survive: %v", err)
	}
}

func TestRotate_UserMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plaintext, _, err := f.issuer.IssueRefreshToken(ctx, "ghost", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Rotate(ctx, plaintext, testDevice)
	if InvalidReason(err) != ReasonNoUser {
		t.Errorf("err = %v, want user_not_found", err)
	}
}

func TestRotate_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	if err != nil {
		t.Fatal(err)
	}
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Rotate(ctx, pair.RefreshToken, testDevice)
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrTokenReuseDetected):
		default:
			t.Errorf("unexpected err: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("successful rotations = %d, want 1", wins)
	}
}

type failingRotateRepo struct {
	*repository.MemoryRepository
}

var errStore = errors.New("connection reset")

func (failingRotateRepo) Rotate(context.Context, string, *domain.RefreshToken, time.Time) (bool, error) {
	return false, errStore
}

func TestRotate_StoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, _ := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	svc := NewRotationService(f.issuer, failingRotateRepo{f.repo}, f.users, f.audit)
	_, err := svc.Rotate(ctx, pair.RefreshToken, testDevice)
	if !errors.Is(err, errStore) {
		t.Fatalf("err = %v, want store error", err)
	}
	if errors.Is(err, ErrInvalidRefreshToken) {
		t.Error("store failure must not look like an invalid token")
	}
	rec, _ := f.repo.GetByLookupHash(ctx, f.issuer.lookup(pair.RefreshToken))
	if rec.IsRevoked {
		t.Error("failed rotation must leave the token active")
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, _ := f.issuer.IssueTokenPair(ctx, f.user, testDevice)
	if err := f.svc.Revoke(ctx, pair.RefreshToken, testDevice); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Revoke(ctx, pair.RefreshToken, testDevice); err != nil {
		t.Errorf("second Revoke should be a no-op: %v", err)
	}
	if got := f.audit.actions(); len(got) != 1 || got[0] != auditdomain.ActionUserLogout {
		t.Errorf("audit = %v", got)
	}
	if err := f.svc.Revoke(ctx, "unknown", testDevice); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("unknown: err = %v", err)
	}
}

func TestRevokeAllAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.issuer.IssueTokenPair(ctx, f.user, testDevice); err != nil {
			t.Fatal(err)
		}
		f.now = f.now.Add(time.Second)
	}
	active, err := f.svc.ListActive(ctx, f.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 3 {
		t.Fatalf("active = %d, want 3", len(active))
	}
	if !active[0].CreatedAt.After(active[2].CreatedAt) {
		t.Error("ListActive should be newest first")
	}
	n, err := f.svc.RevokeAll(ctx, f.user.ID)
	if err != nil || n != 3 {
		t.Fatalf("RevokeAll = %d, %v", n, err)
	}
	if ev := f.audit.find(auditdomain.ActionSessionsRevoked); ev == nil {
		t.Error("sessions_revoked not audited")
	}
	if _, err := f.svc.RevokeAll(ctx, ""); err == nil {
		t.Error("empty user id should fail")
	}
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.issuer.IssueTokenPair(ctx, f.user, testDevice); err != nil {
		t.Fatal(err)
	}
	n, err := f.svc.PurgeExpired(ctx)
	if err != nil || n != 0 {
		t.Fatalf("PurgeExpired = %d, %v; want 0", n, err)
	}
	f.now = f.now.Add(31 * 24 * time.Hour)
	n, err = f.svc.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d, %v; want 1", n, err)
	}
}
