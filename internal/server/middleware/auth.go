// Package middleware holds the Gin middleware for the HTTP server.
package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"user-auth-api/internal/auth/service"
)

const bearerPrefix = "bearer "

const identityKey = "auth.identity"

// RequireAuth validates the Bearer token from the Authorization header and
// sets the caller's identity in the request context for downstream handlers.
// Any missing, malformed, expired, or revoked token aborts with 401. An
// infrastructure failure (e.g. the denylist store is unreachable) is not a
// credential failure; it aborts with 500 and the detail goes to the log.
func RequireAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			abortUnauthorized(c)
			return
		}

		ident, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				abortUnauthorized(c)
				return
			}
			log.Printf("auth: authenticate: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		c.Set(identityKey, *ident)
		c.Next()
	}
}

// IdentityFrom returns the identity set by RequireAuth and true if present.
func IdentityFrom(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return service.Identity{}, false
	}
	ident, ok := v.(service.Identity)
	return ident, ok
}

// extractBearer returns the Bearer token from the header value, or "" if
// missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}
