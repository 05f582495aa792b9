package router

import (
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/anonto42/rehab-social/backend/internal/auth"
	"github.com/anonto42/rehab-social/backend/internal/gateway"
	"github.com/anonto42/rehab-social/backend/internal/handlers"
	"github.com/anonto42/rehab-social/backend/internal/middleware"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/anonto42/rehab-social/backend/internal/services"
	"github.com/anonto42/rehab-social/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the process-level collaborators the routes are built from
type Deps struct {
	Config       *config.Config
	DB           *gorm.DB
	FirebaseAuth *fbauth.Client // optional
	Log          *zap.Logger
}

// SetupRoutes migrates the schema, wires repositories, services and the
// realtime gateway, and registers every route on e.
func SetupRoutes(e *echo.Echo, d Deps) (*gateway.Gateway, error) {
	if err := repositories.AutoMigrate(d.DB); err != nil {
		return nil, errors.Wrap(err, "auto migrate")
	}
	d.Log.Info("Database migrations completed")

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(d.DB)
	friendshipRepo := repositories.NewPostgresFriendshipRepository(d.DB)
	messageRepo := repositories.NewPostgresMessageRepository(d.DB)

	// --- Engines ---
	friends := services.NewFriendshipService(repositories.NewTransactor(d.DB), friendshipRepo, userRepo, d.Log.Named("friends"))
	messages := services.NewMessageService(messageRepo, userRepo, friends, d.Config.ConversationHistoryLimit, d.Log.Named("messages"))

	// --- Identity ---
	verifiers := auth.Chain{auth.NewJWTVerifier(d.Config.JWTSecret)}
	var firebaseVerifier *auth.FirebaseVerifier
	if d.FirebaseAuth != nil {
		firebaseVerifier = auth.NewFirebaseVerifier(d.FirebaseAuth, userRepo)
		verifiers = append(verifiers, firebaseVerifier)
	}

	// --- Realtime gateway ---
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := gateway.NewMetrics(promReg)
	gwConf := gateway.DefaultConfig()
	gwConf.AllowedOrigins = d.Config.WSAllowedOrigins
	gw := gateway.New(verifiers, friends, messages, gateway.NewRegistry(metrics, d.Log.Named("registry")), metrics, gwConf, d.Log.Named("gateway"))

	// Health check and metrics - always accessible
	e.GET("/health", handlers.HealthCheck(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	e.GET("/ws", gw.ServeWS)

	// --- Unprotected routes for authentication ---
	if firebaseVerifier != nil {
		authHandler := handlers.NewAuthHandler(firebaseVerifier, userRepo, d.Config.JWTSecret, d.Config.TokenTTL)
		authHandler.RegisterAuthRoutes(e.Group("/api/v1/auth"))
		d.Log.Info("Firebase token exchange enabled")
	}

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.Authenticate(verifiers))

	handlers.NewUserHandler(userRepo).RegisterProfileRoutes(api)
	handlers.NewFriendshipHandler(friends, gw).RegisterFriendshipRoutes(api)
	handlers.NewMessageHandler(messages, gw).RegisterMessageRoutes(api)

	d.Log.Info("All routes configured")
	return gw, nil
}
