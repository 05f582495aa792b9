package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/handlers"
	"github.com/anonto42/rehab-social/backend/internal/router"
	"github.com/anonto42/rehab-social/backend/internal/validators"
	"github.com/anonto42/rehab-social/backend/pkg/config"
	"github.com/anonto42/rehab-social/backend/pkg/firebase"
	"github.com/anonto42/rehab-social/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn("Using the development JWT secret; set JWT_SECRET outside local development")
	}

	// Initialize database connection
	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.CloseDB()

	// Firebase identity is optional; JWTs always work
	deps := router.Deps{Config: cfg, DB: db.Gorm, Log: log}
	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath, log)
		if err != nil {
			log.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
		deps.FirebaseAuth = app.AuthClient
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler(log)
	config.SetupMiddleware(e, log)

	if _, err := router.SetupRoutes(e, deps); err != nil {
		log.Fatal("Failed to set up routes", zap.Error(err))
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.String("db", cfg.DBDriver))
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
}
