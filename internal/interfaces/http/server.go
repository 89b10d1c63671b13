// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-audit/internal/application/service"
	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/invoice"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	AllowedOrigins  []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	MaxUploadBytes  int64
	Concurrency     int
	Version         string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		RateLimitWindow: time.Minute,
		RateLimitMax:    180,
		MaxUploadBytes:  20 << 20,
		Concurrency:     2,
		Version:         "1.0.0",
	}
}

// DocumentTrigger wakes the background document worker
type DocumentTrigger interface {
	Trigger()
}

// Services groups what the handlers call into. Trigger may be nil.
type Services struct {
	Batches      service.BatchService
	Processing   service.ProcessingService
	Models       service.ModelService
	Usage        service.UsageService
	Notification service.NotificationService
	Engine       *audit.Engine
	Parser       *invoice.Parser
	Trigger      DocumentTrigger
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if config.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = config.MaxUploadBytes
	}

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware(s.config.AllowedOrigins))

	if s.config.RateLimitMax > 0 && s.config.RateLimitWindow > 0 {
		s.router.Use(newClientRateLimiter(s.config.RateLimitWindow, s.config.RateLimitMax).middleware())
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.services, s.config, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		rules := api.Group("/rules")
		rules.POST("/audit", handlers.AuditRecord)
		rules.POST("/dining/plan", handlers.DiningPlan)
		rules.POST("/dining/validate", handlers.ValidateDining)
		rules.POST("/travel/validate", handlers.ValidateTravelItem)
		rules.POST("/travel/report", handlers.TravelReport)
		rules.POST("/parse", handlers.ParseOutput)

		batches := api.Group("/batches")
		batches.GET("", handlers.ListBatches)
		batches.POST("", handlers.CreateBatch)
		batches.GET("/:id", handlers.GetBatch)
		batches.POST("/:id/documents", handlers.UploadDocuments)
		batches.POST("/:id/process", handlers.ProcessBatch)
		batches.PUT("/:id/application", handlers.SetApplicationRange)
		batches.PUT("/:id/items/:itemId/refund", handlers.ConfirmRefund)
		batches.PUT("/:id/items/:itemId/date", handlers.ResolveYear)
		batches.GET("/:id/report", handlers.GetTravelReport)
		batches.GET("/:id/report.xlsx", handlers.ExportTravelReport)
		batches.POST("/:id/notify", handlers.NotifyBatch)

		api.GET("/models/:provider", handlers.ListModels)
		api.POST("/models/:provider", handlers.AddModel)
		api.DELETE("/models/:provider", handlers.RemoveModel)
		api.GET("/openrouter/free-vision-models", handlers.FreeVisionModels)

		api.GET("/usage", handlers.GetUsage)
		api.DELETE("/usage", handlers.ResetUsage)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
