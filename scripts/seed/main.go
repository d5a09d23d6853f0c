package main

import (
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/comedorapp/comedor-api/pkg/config"
	"github.com/comedorapp/comedor-api/pkg/database"
)

// Seeds the first admin account so the API is usable on a fresh database.
func main() {
	var (
		email    string
		password string
		fullName string
		role     string
	)

	flag.StringVar(&email, "email", "admin@comedor.local", "admin email")
	flag.StringVar(&password, "password", "", "admin password (required)")
	flag.StringVar(&fullName, "name", "Administrator", "admin full name")
	flag.StringVar(&role, "role", "SUPERADMIN", "role: SUPERADMIN, ADMIN or STAFF")
	flag.Parse()

	if password == "" {
		log.Fatal("a password is required, pass -password")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now().UTC()
	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, true, $6, $6)
ON CONFLICT (email) DO NOTHING`
	res, err := db.Exec(query, uuid.NewString(), email, string(hash), fullName, role, now)
	if err != nil {
		log.Fatalf("failed to insert user: %v", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		log.Printf("user %s already exists, nothing to do", email)
		return
	}
	log.Printf("seeded %s user %s", role, email)
}
