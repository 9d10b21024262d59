package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetprobe/internal/core/services"
	"meetprobe/internal/infrastructure/livekit"
	"meetprobe/internal/infrastructure/middleware"
	"meetprobe/internal/infrastructure/monitoring"
	"meetprobe/internal/infrastructure/signal"
	"meetprobe/pkg/config"
	"meetprobe/pkg/logger"
)

// RouterDeps are the collaborators behind the control API. Tokens and
// Health may be nil.
type RouterDeps struct {
	Config  *config.Config
	Client  *services.MeetingClient
	Helpers *services.Helpers
	Tokens  *livekit.TokenMinter
	Health  *monitoring.HealthChecker
	Stream  *signal.WebSocketServer
	Logger  *zap.Logger
}

// NewRouter assembles the control API under /api/v1 plus the health, metrics
// and window stream endpoints.
func NewRouter(background context.Context, d RouterDeps) *gin.Engine {
	log := d.Logger.Sugar()

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLogger(logger.NewContextLogger(d.Logger)),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(d.Config),
	)

	if d.Health != nil {
		NewHealthHandler(d.Health).SetupRoutes(router, d.Config.Monitoring.PrometheusEnabled)
	}
	if d.Stream != nil {
		router.GET("/ws", gin.WrapF(d.Stream.HandleWebSocket))
	}

	api := router.Group("/api/v1")
	// Config validation guarantees credentials when auth is required.
	if d.Config.Server.RequireAuth && d.Tokens != nil {
		api.Use(middleware.ControlAuthMiddleware(d.Tokens))
	}

	NewSessionHandler(background, d.Client, d.Config.SessionParams(), d.Tokens).SetupRoutes(api)
	NewStateHandler(d.Helpers.Store(), d.Client.Board()).SetupRoutes(api)
	NewMediaHandler(d.Helpers).SetupRoutes(api)
	NewSubscriptionHandler(d.Helpers).SetupRoutes(api)
	NewDataHandler(d.Helpers).SetupRoutes(api)
	NewMetadataHandler(d.Helpers).SetupRoutes(api)
	NewConnectionHandler(d.Helpers).SetupRoutes(api)

	return router
}
