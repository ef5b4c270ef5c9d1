package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"user-auth-api/internal/audit"
	auditrepo "user-auth-api/internal/audit/repository"
	"user-auth-api/internal/auth/service"
	"user-auth-api/internal/config"
	"user-auth-api/internal/db"
	"user-auth-api/internal/security"
	"user-auth-api/internal/server"
	"user-auth-api/internal/session"
	"user-auth-api/internal/telemetry/otel"
	userrepo "user-auth-api/internal/user/repository"
)

const serviceName = "user-auth-api"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	log.Printf("signing tokens with %s, ttl %s", security.KeyAlg(publicKey), cfg.TTL())

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	var denylist session.Denylist
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		denylist = session.NewRedisDenylist(rdb)
		log.Printf("token denylist enabled via redis at %s", cfg.RedisAddr)
	} else {
		log.Println("REDIS_ADDR not set; logout is stateless and tokens expire on their own")
	}

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TTL())
	auth := service.NewAuthService(
		userrepo.NewPostgresRepository(database),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		denylist,
		audit.NewLogger(auditrepo.NewPostgresRepository(database)),
	)

	router := server.NewRouter(server.Deps{
		Auth:         auth,
		HealthPinger: database,
		CORSOrigins:  cfg.CORSOrigins(),
		Tracer:       providers.TracerProvider.Tracer(serviceName),
		Meter:        providers.MeterProvider.Meter(serviceName),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
