package domain

import "time"

// Event records one authentication action for the audit trail.
type Event struct {
	ID        string
	UserID    string // empty when the actor is unknown (failed login)
	Action    Action
	Email     string // email presented to register/login; empty otherwise
	IP        string
	CreatedAt time.Time
}

type Action string

const (
	ActionRegister    Action = "register"
	ActionLogin       Action = "login"
	ActionLoginFailed Action = "login_failed"
	ActionLogout      Action = "logout"
	ActionRefresh     Action = "refresh"
)
