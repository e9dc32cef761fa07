package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/neonverse/gamestore-api/internal/config"
	"github.com/neonverse/gamestore-api/internal/database"
	"github.com/neonverse/gamestore-api/internal/types"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultEmail    = "owner@neonverse.com"
	defaultPassword = "SuperAdmin123"
)

// main creates the superadmin account if it does not exist yet. The
// credentials can be overridden with SEED_EMAIL and SEED_PASSWORD.
func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zlog.Logger = zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(".")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	var existing types.User
	if err := db.Where("role = ?", types.RoleSuperAdmin).First(&existing).Error; err == nil {
		zlog.Info().Str("email", existing.Email).Msg("superadmin already exists")
		return
	}

	email := os.Getenv("SEED_EMAIL")
	if email == "" {
		email = defaultEmail
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = defaultPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to hash password")
	}

	superadmin := types.User{
		UserID:   "USR_" + uuid.New().String(),
		Username: "owner",
		Email:    email,
		Password: string(hash),
		Role:     types.RoleSuperAdmin,
	}

	if err := db.Create(&superadmin).Error; err != nil {
		zlog.Fatal().Err(err).Msg("Failed to create superadmin")
	}

	zlog.Info().Str("email", superadmin.Email).Msg("superadmin created")
}
