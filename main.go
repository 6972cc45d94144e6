package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/api"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/config"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/logger"
	"github.com/isdelr/alumni-portal-be/internal/monitoring"
	"github.com/isdelr/alumni-portal-be/internal/notify"
	"github.com/isdelr/alumni-portal-be/internal/ratelimit"
	"github.com/isdelr/alumni-portal-be/internal/services"
	"github.com/isdelr/alumni-portal-be/internal/verification"
	"github.com/isdelr/alumni-portal-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

const statInterval = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Set up the record store
	store, err := database.New(cfg.StoreDriver, cfg.DataSource())
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to initialize database")
	}
	defer store.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Rate limiting is shared across instances when Redis is configured.
	memLimiter := ratelimit.NewMemoryLimiter()
	var limiter ratelimit.Limiter = memLimiter
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory rate limiting")
		} else {
			defer redisLimiter.Close()
			limiter = redisLimiter
		}
	}

	// Set up collaborators and services
	notifier := notify.NewNotifier(notify.NewMailer(cfg.SMTP), hub, cfg.NotifyTimeout)
	verifier := verification.New(cfg.VerifierURL, &http.Client{Timeout: cfg.NotifyTimeout})
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	eventService := services.NewEventService(store)
	accountService := services.NewAccountService(store, tokens, verifier, notifier, eventService, services.AccountOptions{
		ResetTokenTTL: cfg.ResetTokenTTL,
		FrontendURL:   cfg.FrontendURL,
		VerifyTimeout: cfg.NotifyTimeout,
	})
	jobService := services.NewJobService(store, notifier, eventService)
	applicationService := services.NewApplicationService(store, notifier, eventService)
	profileService := services.NewProfileService(store)

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(eventService, statInterval)
	go statUpdater.Run()

	// Set up and run the background scheduler
	scheduler, err := monitoring.NewScheduler(cfg.PurgeSchedule, accountService, memLimiter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	scheduler.Start()

	trustedProxies, err := cfg.TrustedNetworks()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid trusted proxy configuration")
	}

	router := api.NewRouter(api.Dependencies{
		Tokens:       tokens,
		Hub:          hub,
		Limiter:      limiter,
		Store:        store,
		Stats:        statUpdater,
		Accounts:     accountService,
		Jobs:         jobService,
		Applications: applicationService,
		Profiles:     profileService,
		Events:       eventService,
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.IsProduction(),

		TrustedProxies: trustedProxies,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("store", cfg.StoreDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	statUpdater.Stop()
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	notifier.Wait()
	hub.Stop()
	log.Info().Msg("Server exiting")
}
