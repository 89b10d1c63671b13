package http

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	services Services
	config   ServerConfig
	logger   Logger
	now      func() time.Time
}

// NewHandlers creates new HTTP handlers
func NewHandlers(services Services, config ServerConfig, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	respondOK(c, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now(),
		Version:   h.config.Version,
	})
}

// bindJSON decodes the request body and reports a 400 on failure
func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, badRequest(err.Error()))
		return false
	}
	return true
}

func (h *Handlers) bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		h.respondError(c, badRequest(err.Error()))
		return false
	}
	return true
}
