package repository

import (
	"context"
	"errors"

	"user-auth-api/internal/user/domain"
)

// ErrEmailTaken is returned by Create when the unique index on email rejects
// the row. The store enforces uniqueness atomically, so concurrent
// registrations with the same email cannot both succeed.
var ErrEmailTaken = errors.New("email already taken")

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *domain.User) error
}
