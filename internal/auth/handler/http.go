// Package handler exposes the auth service over HTTP JSON endpoints.
package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"user-auth-api/internal/auth/service"
	"user-auth-api/internal/server/middleware"
	userdomain "user-auth-api/internal/user/domain"
)

// Handler serves the auth endpoints: register, login, me, logout, refresh.
type Handler struct {
	auth *service.AuthService
}

// NewHandler returns a Handler backed by the given auth service.
func NewHandler(auth *service.AuthService) *Handler {
	return &Handler{auth: auth}
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userJSON is the wire shape for a user. The password hash never leaves the server.
type userJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toUserJSON(u *userdomain.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func tokenJSON(tok *service.Token) gin.H {
	return gin.H{
		"access_token": tok.AccessToken,
		"token_type":   "bearer",
		"expires_in":   tok.ExpiresIn,
	}
}

// Register handles POST /register. 201 with the created user, 400 with a
// field → messages map on validation failure.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	u, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	}, c.ClientIP())
	if err != nil {
		var ferrs service.FieldErrors
		if errors.As(err, &ferrs) {
			c.JSON(http.StatusBadRequest, ferrs)
			return
		}
		internalError(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toUserJSON(u)})
}

// Login handles POST /login. 200 with an access token, 401 on any credential
// failure.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unauthorized(c)
		return
	}

	tok, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			unauthorized(c)
			return
		}
		internalError(c, "login", err)
		return
	}

	c.JSON(http.StatusOK, tokenJSON(tok))
}

// Me handles GET /auth/me and returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	u, err := h.auth.Me(c.Request.Context(), ident)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			unauthorized(c)
			return
		}
		internalError(c, "me", err)
		return
	}

	c.JSON(http.StatusOK, toUserJSON(u))
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), ident, c.ClientIP()); err != nil {
		internalError(c, "logout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// Refresh handles POST /auth/refresh and returns a token with a fresh expiry.
func (h *Handler) Refresh(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	tok, err := h.auth.Refresh(c.Request.Context(), ident, c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			unauthorized(c)
			return
		}
		internalError(c, "refresh", err)
		return
	}

	c.JSON(http.StatusOK, tokenJSON(tok))
}

type eventJSON struct {
	Action    string `json:"action"`
	Email     string `json:"email,omitempty"`
	IP        string `json:"ip,omitempty"`
	CreatedAt string `json:"created_at"`
}

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// Events handles GET /auth/events and returns the caller's own auth history,
// newest first. Query params: limit (default 20, max 100) and offset.
func (h *Handler) Events(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	limit := intQuery(c, "limit", defaultEventLimit)
	if limit < 1 || limit > maxEventLimit {
		limit = defaultEventLimit
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	events, err := h.auth.Events(c.Request.Context(), ident, int32(limit), int32(offset))
	if err != nil {
		internalError(c, "events", err)
		return
	}

	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON{
			Action:    string(e.Action),
			Email:     e.Email,
			IP:        e.IP,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

func internalError(c *gin.Context, op string, err error) {
	log.Printf("auth: %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}
