// seed inserts a development user for local testing.
// Idempotent: skips the insert if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"

	"user-auth-api/internal/config"
	"user-auth-api/internal/db"
	"user-auth-api/internal/security"
	userdomain "user-auth-api/internal/user/domain"
	userrepo "user-auth-api/internal/user/repository"
)

const (
	devUserName  = "Dev User"
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	users := userrepo.NewPostgresRepository(database)

	exists, err := users.ExistsByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if exists {
		log.Printf("seed: %s already exists, nothing to do", devUserEmail)
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}
	u := userdomain.New(devUserName, devUserEmail, hash)
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("seed: create user: %v", err)
	}

	log.Printf("seed: created %s (password %q)", devUserEmail, devPassword)
}
