package repository

import (
	"context"
	"database/sql"

	"user-auth-api/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit event. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	uid := sql.NullString{String: e.UserID, Valid: e.UserID != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_events (id, user_id, action, email, ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, uid, string(e.Action), e.Email, e.IP, e.CreatedAt)
	return err
}

// ListByUser returns audit events for the given user, newest first, paginated
// by limit and offset.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, email, ip, created_at
		 FROM auth_events WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var uid sql.NullString
		var action string
		if err := rows.Scan(&e.ID, &uid, &action, &e.Email, &e.IP, &e.CreatedAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			e.UserID = uid.String
		}
		e.Action = domain.Action(action)
		out = append(out, &e)
	}
	return out, rows.Err()
}
