// Package service orchestrates registration, login, session introspection,
// logout, and refresh over the user store, password hasher, and token
// provider.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"user-auth-api/internal/audit"
	auditdomain "user-auth-api/internal/audit/domain"
	"user-auth-api/internal/security"
	"user-auth-api/internal/session"
	userdomain "user-auth-api/internal/user/domain"
	userrepo "user-auth-api/internal/user/repository"
)

// ErrUnauthorized covers every credential failure: unknown email, wrong
// password, and missing/invalid/expired/revoked tokens. Callers must not be
// able to tell these apart.
var ErrUnauthorized = errors.New("unauthorized")

// RegisterInput carries the registration fields. Password is transient; it is
// hashed immediately and never stored or echoed.
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// Token is an issued session token plus what the wire format needs alongside it.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	ExpiresIn   int64 // configured TTL in seconds
}

// Identity describes a verified session token: who it belongs to and which
// issuance (jti) it came from.
type Identity struct {
	UserID    string
	JTI       string
	ExpiresAt time.Time
}

// AuthService implements register, login, me, logout, and refresh.
type AuthService struct {
	users    userrepo.Repository
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	denylist session.Denylist // nil: no server-side revocation, logout is client-side discard
	audit    *audit.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
// denylist may be nil; auditLogger may be NewLogger(nil) when audit is disabled.
func NewAuthService(
	users userrepo.Repository,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	denylist session.Denylist,
	auditLogger *audit.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		denylist: denylist,
		audit:    auditLogger,
	}
}

// Register validates the input, creates the user with a hashed password, and
// returns the stored record. Validation failures come back as FieldErrors
// carrying every violation at once; a duplicate email is reported the same
// way, even when it is only detected by the store's unique index during the
// insert.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, ip string) (*userdomain.User, error) {
	errs := validateRegistration(in)

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if len(errs["email"]) == 0 {
		taken, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("email", msgEmailTaken)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}

	u := userdomain.New(strings.TrimSpace(in.Name), email, hash)
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			// Lost the race against a concurrent registration.
			return nil, FieldErrors{"email": {msgEmailTaken}}
		}
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionRegister, u.ID, u.Email, ip)
	return u, nil
}

// Login verifies the credentials and mints a session token. Unknown email and
// wrong password produce the identical ErrUnauthorized; nothing in the result
// distinguishes them.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.audit.Record(ctx, auditdomain.ActionLoginFailed, "", email, ip)
		return nil, ErrUnauthorized
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !s.hasher.Verify([]byte(password), u.PasswordHash) {
		s.audit.Record(ctx, auditdomain.ActionLoginFailed, "", email, ip)
		return nil, ErrUnauthorized
	}

	tok, err := s.issue(u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditdomain.ActionLogin, u.ID, u.Email, ip)
	return tok, nil
}

// Authenticate resolves a bearer token to an identity: signature and expiry
// via the token provider, then the denylist when one is configured. Every
// failure is ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	userID, jti, expiresAt, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, jti)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrUnauthorized
		}
	}
	return &Identity{UserID: userID, JTI: jti, ExpiresAt: expiresAt}, nil
}

// Me returns the current user record for the authenticated identity. The read
// is fresh from the store, not reconstructed from token claims; a user deleted
// since issuance yields ErrUnauthorized.
func (s *AuthService) Me(ctx context.Context, ident Identity) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// Logout ends the session. With a denylist configured the token's jti is
// revoked until its natural expiry; without one the token stays valid until
// it expires and logout is purely the client discarding it.
func (s *AuthService) Logout(ctx context.Context, ident Identity, ip string) error {
	if s.denylist != nil {
		if err := s.denylist.Revoke(ctx, ident.JTI, ident.ExpiresAt); err != nil {
			return err
		}
	}
	s.audit.Record(ctx, auditdomain.ActionLogout, ident.UserID, "", ip)
	return nil
}

// Refresh rotates the session: the old token's jti is revoked (when a
// denylist is configured) and a fresh token with a full TTL is issued. The
// caller must have authenticated the old token already.
func (s *AuthService) Refresh(ctx context.Context, ident Identity, ip string) (*Token, error) {
	if s.denylist != nil {
		if err := s.denylist.Revoke(ctx, ident.JTI, ident.ExpiresAt); err != nil {
			return nil, err
		}
	}
	tok, err := s.issue(ident.UserID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditdomain.ActionRefresh, ident.UserID, "", ip)
	return tok, nil
}

// Events returns the caller's own audit trail, newest first. Empty when audit
// is disabled.
func (s *AuthService) Events(ctx context.Context, ident Identity, limit, offset int32) ([]*auditdomain.Event, error) {
	return s.audit.Events(ctx, ident.UserID, limit, offset)
}

func (s *AuthService) issue(userID string) (*Token, error) {
	token, _, expiresAt, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}
