package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/router"
	"github.com/safetrade/marketplace/backend/internal/seed"
	"github.com/safetrade/marketplace/backend/pkg/config"
	"github.com/safetrade/marketplace/backend/pkg/firebase"
	"github.com/safetrade/marketplace/backend/pkg/logging"
	"github.com/safetrade/marketplace/backend/validators"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// The logger is configured from cfg, so fall back to a default one here.
		logging.New(config.LoggingConfig{}).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)
	if !cfg.DotEnvLoaded {
		log.Info("no .env file found, reading the process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.Error("failed to initialize databases", "error", err)
		os.Exit(1)
	}
	defer db.CloseDB()

	if err := router.Migrate(db.Postgres); err != nil {
		log.Error("failed to auto migrate models", "error", err)
		os.Exit(1)
	}
	log.Info("PostgreSQL auto-migrations completed")

	deps := router.NewDependencies(ctx, db, cfg, log)
	if err := deps.Messages.EnsureIndexes(ctx); err != nil {
		log.Error("failed to create message indexes", "error", err)
		os.Exit(1)
	}

	if cfg.SafeZonesSeedFile != "" {
		zones, err := seed.LoadSafeZones(cfg.SafeZonesSeedFile)
		if err != nil {
			log.Error("failed to load safe zone seed", "path", cfg.SafeZonesSeedFile, "error", err)
			os.Exit(1)
		}
		if err := deps.SafeZones.UpsertSafeZones(ctx, zones); err != nil {
			log.Error("failed to seed safe zones", "error", err)
			os.Exit(1)
		}
		log.Info("safe zones seeded", "count", len(zones))
	}

	// Initialize Firebase
	opts := router.Options{
		AuthProvider:       cfg.Auth.Provider,
		JWTSecret:          cfg.Auth.JWTSecret,
		TokenTTL:           cfg.Auth.TokenTTL,
		PhoneSendPerMinute: cfg.Phone.SendPerMinute,
		SigninPerMinute:    cfg.Auth.SigninPerMinute,
		Logger:             log,
	}
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Error("failed to initialize Firebase", "error", err)
			os.Exit(1)
		}
		opts.Firebase = firebaseApp.AuthClient
		log.Info("Firebase initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = config.ErrorHandler(log)
	config.SetupMiddleware(e, cfg, log)

	if err := router.SetupRoutes(ctx, e, deps, opts); err != nil {
		log.Error("failed to configure routes", "error", err)
		os.Exit(1)
	}

	go func() {
		log.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), orDuration(cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
