// Command create-employer seeds an employer account directly in the record
// store, for bootstrapping a portal before any admin has logged in.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/config"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/logger"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/services"
	"github.com/isdelr/alumni-portal-be/internal/verification"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	name := pflag.StringP("name", "n", "", "employer display name")
	email := pflag.StringP("email", "e", "", "employer login email")
	password := pflag.StringP("password", "p", os.Getenv("EMPLOYER_PASSWORD"), "initial password (default $EMPLOYER_PASSWORD)")
	actor := pflag.String("actor", "cli@localhost", "email recorded as the creator in the audit trail")
	pflag.Parse()

	if *name == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: create-employer --name NAME --email EMAIL [--password PASSWORD]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, *actor, services.RegisterInput{Name: *name, Email: *email, Password: *password}); err != nil {
		log.Fatal().Err(err).Str("email", *email).Msg("Failed to create employer")
	}
}

func run(cfg *config.Config, actor string, in services.RegisterInput) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := database.New(cfg.StoreDriver, cfg.DataSource())
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	events := services.NewEventService(store)
	accounts := services.NewAccountService(store, auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		verification.MockVerifier{}, nil, events, services.AccountOptions{})

	account, err := accounts.CreateEmployer(ctx, auth.Principal{Email: actor, Role: models.RoleAdmin}, in)
	if err != nil {
		return err
	}
	log.Info().Str("id", account.ID).Str("email", account.Email).Msg("Employer account created")
	return nil
}
