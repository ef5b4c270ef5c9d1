// Package audit writes the authentication audit trail.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"user-auth-api/internal/audit/domain"
	auditrepo "user-auth-api/internal/audit/repository"
)

// Logger records auth events. Recording is best-effort: failures are logged
// and never affect the request that produced them.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns a Logger that persists to repo. repo may be nil; then
// every Record call is a no-op (audit disabled, e.g. no database configured).
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// Record writes one audit event. userID may be empty for failed logins; ip
// may be empty when the boundary could not determine a client address.
func (l *Logger) Record(ctx context.Context, action domain.Action, userID, email, ip string) {
	if l == nil || l.repo == nil {
		return
	}
	e := &domain.Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Email:     email,
		IP:        ip,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		log.Printf("audit: failed to record %s: %v", action, err)
	}
}

// Events returns the recorded events for userID, newest first. With a nil
// repo (audit disabled) the result is always empty.
func (l *Logger) Events(ctx context.Context, userID string, limit, offset int32) ([]*domain.Event, error) {
	if l == nil || l.repo == nil {
		return nil, nil
	}
	return l.repo.ListByUser(ctx, userID, limit, offset)
}
