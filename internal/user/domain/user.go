package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is the core identity entity. PasswordHash is opaque to callers and is
// never serialized outward; outward views are built by the HTTP handlers.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New constructs a user from exactly the permitted fields: name, email, and
// password hash. ID and timestamps are assigned here; no other field can be
// injected at construction time.
func New(name, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
