package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mealwise/backend/config"
	"github.com/mealwise/backend/internal/api"
	"github.com/mealwise/backend/internal/middleware"
	"github.com/mealwise/backend/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *logrus.Logger
}

// Services bundles the service layer the HTTP handlers depend on.
type Services struct {
	Stats     *service.StatsService
	Telemetry *service.TelemetryService
	Directory *service.UserDirectoryService
	Sender    service.MessageSender
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, svcs Services, logger *logrus.Logger) *Server {
	router := gin.Default()

	router.Use(middleware.CORS(cfg.FrontendOrigin))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	statsHandler := api.NewStatsHandler(svcs.Stats)
	telemetryHandler := api.NewTelemetryHandler(svcs.Telemetry)
	adminHandler := api.NewAdminHandler(svcs.Directory, svcs.Sender)

	apiGroup := router.Group("/api")
	statsHandler.RegisterRoutes(apiGroup)
	telemetryHandler.RegisterRoutes(apiGroup)
	adminHandler.RegisterRoutes(apiGroup, cfg.AdminAPISecret)

	return &Server{
		router: router,
		logger: logger,
	}
}

// Start starts the server and blocks until it stops serving.
func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}

	s.logger.WithField("addr", s.http.Addr).Info("HTTP server listening")

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Router exposes the underlying gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
