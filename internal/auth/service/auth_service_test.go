package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"user-auth-api/internal/audit"
	"user-auth-api/internal/security"
	userdomain "user-auth-api/internal/user/domain"
	userrepo "user-auth-api/internal/user/repository"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    make(map[string]*userdomain.User),
		byEmail: make(map[string]*userdomain.User),
	}
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[strings.ToLower(email)], nil
}

func (r *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byEmail[strings.ToLower(email)]
	return ok, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := r.byEmail[key]; ok {
		return userrepo.ErrEmailTaken
	}
	u2 := *u
	r.byID[u.ID] = &u2
	r.byEmail[key] = &u2
	return nil
}

type memDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newMemDenylist() *memDenylist {
	return &memDenylist{revoked: make(map[string]time.Time)}
}

func (d *memDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[jti] = expiresAt
	return nil
}

func (d *memDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[jti]
	return ok, nil
}

func newTestService(t *testing.T) (*AuthService, *memUserRepo, *memDenylist, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	users := newMemUserRepo()
	denylist := newMemDenylist()
	svc := NewAuthService(users, security.NewHasher(4), tokens, denylist, audit.NewLogger(nil))
	return svc, users, denylist, tokens
}

func validInput() RegisterInput {
	return RegisterInput{
		Name:                 "Juan Pérez",
		Email:                "juan@example.com",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	}
}

func TestRegister_ThenLogin(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, validInput(), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == "" {
		t.Error("user ID should be assigned")
	}
	if u.Email != "juan@example.com" {
		t.Errorf("email = %q, want juan@example.com", u.Email)
	}
	if u.PasswordHash == "" || u.PasswordHash == "secret123" {
		t.Error("password must be stored hashed, never as plaintext")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}

	tok, err := svc.Login(ctx, "juan@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login after Register: %v", err)
	}
	if tok.AccessToken == "" {
		t.Error("access token should not be empty")
	}
	if tok.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", tok.ExpiresIn)
	}
}

func TestRegister_EmailCaseInsensitive(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	in := validInput()
	in.Email = "Juan@Example.COM"
	u, err := svc.Register(ctx, in, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "juan@example.com" {
		t.Errorf("email should be lowercased, got %q", u.Email)
	}
	if _, err := svc.Login(ctx, "JUAN@example.com", "secret123", ""); err != nil {
		t.Errorf("Login with different casing should succeed: %v", err)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	in := validInput()
	in.Password = "short"
	in.PasswordConfirmation = "short"
	_, err := svc.Register(context.Background(), in, "")

	var ferrs FieldErrors
	if !errors.As(err, &ferrs) {
		t.Fatalf("Register = %v, want FieldErrors", err)
	}
	if len(ferrs["password"]) == 0 {
		t.Errorf("errors should mention password, got %v", ferrs)
	}
}

func TestRegister_AllViolationsReported(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{}, "")
	var ferrs FieldErrors
	if !errors.As(err, &ferrs) {
		t.Fatalf("Register = %v, want FieldErrors", err)
	}
	for _, field := range []string{"name", "email", "password"} {
		if len(ferrs[field]) == 0 {
			t.Errorf("errors should include %q, got %v", field, ferrs)
		}
	}
}

func TestRegister_ConfirmationMismatch(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	in := validInput()
	in.PasswordConfirmation = "different123"
	_, err := svc.Register(context.Background(), in, "")

	var ferrs FieldErrors
	if !errors.As(err, &ferrs) {
		t.Fatalf("Register = %v, want FieldErrors", err)
	}
	if len(ferrs["password"]) == 0 {
		t.Errorf("errors should mention password, got %v", ferrs)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, validInput(), "")
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}

	in := validInput()
	in.Name = "Ana Gómez"
	_, err = svc.Register(ctx, in, "")
	var ferrs FieldErrors
	if !errors.As(err, &ferrs) {
		t.Fatalf("second Register = %v, want FieldErrors", err)
	}
	if len(ferrs["email"]) == 0 {
		t.Errorf("errors should mention email, got %v", ferrs)
	}

	// First record is untouched.
	stored, _ := users.GetByID(ctx, first.ID)
	if stored == nil || stored.Name != "Juan Pérez" {
		t.Errorf("first user should be unaffected, got %+v", stored)
	}
}

// racingRepo reports the email as free but fails the insert, like a
// concurrent registration landing between the existence check and Create.
type racingRepo struct{ *memUserRepo }

func (r racingRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func TestRegister_DuplicateDetectedByStoreRace(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	users := newMemUserRepo()
	svc := NewAuthService(racingRepo{users}, security.NewHasher(4), tokens, newMemDenylist(), audit.NewLogger(nil))
	ctx := context.Background()

	other := userdomain.New("Other", "juan@example.com", "x")
	if err := users.Create(ctx, other); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = svc.Register(ctx, validInput(), "")
	var ferrs FieldErrors
	if !errors.As(err, &ferrs) {
		t.Fatalf("Register = %v, want FieldErrors", err)
	}
	if len(ferrs["email"]) == 0 {
		t.Errorf("errors should mention email, got %v", ferrs)
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput(), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, errWrongPassword := svc.Login(ctx, "juan@example.com", "wrong-password", "")
	_, errUnknownEmail := svc.Login(ctx, "nobody@example.com", "secret123", "")

	if !errors.Is(errWrongPassword, ErrUnauthorized) {
		t.Errorf("wrong password = %v, want ErrUnauthorized", errWrongPassword)
	}
	if !errors.Is(errUnknownEmail, ErrUnauthorized) {
		t.Errorf("unknown email = %v, want ErrUnauthorized", errUnknownEmail)
	}
	// The two failures must be indistinguishable.
	if errWrongPassword.Error() != errUnknownEmail.Error() {
		t.Error("login failures must not reveal whether the user exists")
	}
}

func TestAuthenticate_MeAndExpiry(t *testing.T) {
	svc, _, _, tokens := newTestService(t)
	ctx := context.Background()

	issued := time.Now().UTC()
	tokens.SetClock(func() time.Time { return issued })

	u, err := svc.Register(ctx, validInput(), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok, err := svc.Login(ctx, "juan@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ident, err := svc.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ident.UserID != u.ID {
		t.Errorf("UserID = %q, want %q", ident.UserID, u.ID)
	}

	me, err := svc.Me(ctx, *ident)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Email != "juan@example.com" {
		t.Errorf("Me email = %q", me.Email)
	}

	// TTL elapses; same token is now rejected.
	tokens.SetClock(func() time.Time { return issued.Add(2 * time.Hour) })
	if _, err := svc.Authenticate(ctx, tok.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate after expiry = %v, want ErrUnauthorized", err)
	}
}

func TestMe_UserDeletedSinceIssuance(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, validInput(), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok, err := svc.Login(ctx, "juan@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ident, err := svc.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	users.mu.Lock()
	delete(users.byID, u.ID)
	users.mu.Unlock()

	if _, err := svc.Me(ctx, *ident); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Me for deleted user = %v, want ErrUnauthorized", err)
	}
}

func TestRefresh_ResetsExpiryAndRotates(t *testing.T) {
	svc, _, _, tokens := newTestService(t)
	ctx := context.Background()

	issued := time.Now().UTC()
	tokens.SetClock(func() time.Time { return issued })

	if _, err := svc.Register(ctx, validInput(), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok, err := svc.Login(ctx, "juan@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ident, err := svc.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// 30 minutes later: refresh resets the window from now, not from login.
	tokens.SetClock(func() time.Time { return issued.Add(30 * time.Minute) })
	fresh, err := svc.Refresh(ctx, *ident, "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !fresh.ExpiresAt.After(tok.ExpiresAt.Add(29 * time.Minute)) {
		t.Errorf("refreshed expiry %v should be ~30m after original %v", fresh.ExpiresAt, tok.ExpiresAt)
	}

	// The old token was rotated out.
	if _, err := svc.Authenticate(ctx, tok.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("old token after refresh = %v, want ErrUnauthorized", err)
	}
	// The fresh one works.
	if _, err := svc.Authenticate(ctx, fresh.AccessToken); err != nil {
		t.Errorf("fresh token after refresh: %v", err)
	}
}

type failingDenylist struct{}

func (failingDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return errors.New("redis: connection refused")
}

func (failingDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestAuthenticate_DenylistFailureIsNotCredentialFailure(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := NewAuthService(newMemUserRepo(), security.NewHasher(4), tokens, failingDenylist{}, audit.NewLogger(nil))
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput(), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok, err := svc.Login(ctx, "juan@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err = svc.Authenticate(ctx, tok.AccessToken)
	if err == nil {
		t.Fatal("Authenticate should fail when the denylist store is down")
	}
	// The store outage must stay distinguishable from a bad credential so the
	// boundary can answer 500 instead of 401.
	if errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate = %v, must not be ErrUnauthorized", err)
	}
}

func TestLogout_RevokesWithDenylist(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput(), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok, err := svc.Login(ctx, "juan@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ident, err := svc.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := svc.Logout(ctx, *ident, ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, tok.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("token after logout = %v, want ErrUnauthorized", err)
	}
}

func TestLogout_WithoutDenylistIsStateless(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := NewAuthService(newMemUserRepo(), security.NewHasher(4), tokens, nil, audit.NewLogger(nil))
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput(), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok, err := svc.Login(ctx, "juan@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ident, err := svc.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := svc.Logout(ctx, *ident, ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	// No denylist: the token stays valid until it expires on its own.
	if _, err := svc.Authenticate(ctx, tok.AccessToken); err != nil {
		t.Errorf("stateless logout should not invalidate the token: %v", err)
	}
}
