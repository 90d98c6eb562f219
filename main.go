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

	"github.com/isdelr/calcapi/internal/api"
	"github.com/isdelr/calcapi/internal/auth"
	"github.com/isdelr/calcapi/internal/config"
	"github.com/isdelr/calcapi/internal/database"
	"github.com/isdelr/calcapi/internal/logger"
	"github.com/isdelr/calcapi/internal/monitoring"
	"github.com/isdelr/calcapi/internal/services"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabasePath, database.Options{LogSQL: cfg.DatabaseLog})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to access connection pool")
	}

	// Set up services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	userService := services.NewUserService(db, hasher, tokens)
	calculationService := services.NewCalculationService(db)

	// Set up and run the background stats updater
	schedule := cfg.StatsSchedule
	if !cfg.MetricsEnabled {
		schedule = ""
	}
	statUpdater, err := monitoring.NewStatUpdater(services.NewStatsService(db), schedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up stat updater")
	}
	statUpdater.Run()

	// Set up router
	router, err := api.NewRouter(api.RouterConfig{
		Users:          userService,
		Calculations:   calculationService,
		Tokens:         tokens,
		DB:             sqlDB,
		CORSOrigins:    cfg.CORSOrigins,
		AuthRateLimit:  cfg.AuthRateLimit,
		MetricsEnabled: cfg.MetricsEnabled,
		Development:    !cfg.IsProduction(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	statUpdater.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
