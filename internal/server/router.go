// Package server wires the HTTP router: routes, CORS, and middleware.
package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	authhandler "user-auth-api/internal/auth/handler"
	"user-auth-api/internal/auth/service"
	healthhandler "user-auth-api/internal/health/handler"
	"user-auth-api/internal/server/middleware"
)

// Deps holds the dependencies the router needs.
type Deps struct {
	// Auth is the auth service behind every endpoint.
	Auth *service.AuthService
	// HealthPinger is used by GET /health for DB readiness. May be nil.
	HealthPinger healthhandler.Pinger
	// CORSOrigins is the list of allowed origins. Empty disables CORS handling.
	CORSOrigins []string
	// Tracer and Meter instrument requests. Either nil disables telemetry middleware.
	Tracer trace.Tracer
	Meter  metric.Meter
}

// NewRouter builds the Gin engine with all routes registered.
//
// Route map:
//   - POST /register      → auth handler (public)
//   - POST /login         → auth handler (public)
//   - GET  /auth/me       → auth handler (Bearer token)
//   - POST /auth/logout   → auth handler (Bearer token)
//   - POST /auth/refresh  → auth handler (Bearer token)
//   - GET  /auth/events   → auth handler (Bearer token)
//   - GET  /health        → health handler (public)
func NewRouter(deps Deps) *gin.Engine {
	router := gin.Default()

	if len(deps.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = deps.CORSOrigins
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
		router.Use(cors.New(corsConfig))
	}

	if deps.Tracer != nil && deps.Meter != nil {
		router.Use(middleware.Telemetry(deps.Tracer, deps.Meter, map[string]bool{
			"/health": true,
		}))
	}

	router.GET("/health", healthhandler.Health(deps.HealthPinger))

	h := authhandler.NewHandler(deps.Auth)
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)

	protected := router.Group("/auth")
	protected.Use(middleware.RequireAuth(deps.Auth))
	{
		protected.GET("/me", h.Me)
		protected.POST("/logout", h.Logout)
		protected.POST("/refresh", h.Refresh)
		protected.GET("/events", h.Events)
	}

	return router
}
