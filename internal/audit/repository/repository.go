package repository

import (
	"context"

	"user-auth-api/internal/audit/domain"
)

// Repository defines persistence for auth audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error)
}
