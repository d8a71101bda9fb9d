package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lobbysignal/signalhub/internal/v1/bus"
	"github.com/lobbysignal/signalhub/internal/v1/logging"
)

// Handler manages health check endpoints.
type Handler struct {
	redisService *bus.Service
}

// NewHandler creates a new health check handler. redisService may be nil in
// single-instance mode, in which case Redis is reported healthy by default.
func NewHandler(redisService *bus.Service) *Handler {
	return &Handler{redisService: redisService}
}

// LivenessResponse represents the liveness probe response.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint.
// GET /health/live
// Returns 200 if the process is alive (no dependency checks).
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles the readiness probe endpoint.
// GET /health/ready
// Returns 200 only if all critical dependencies are healthy, 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// checkRedis verifies Redis connectivity using the PING command. In
// single-instance mode (no bus configured) this is vacuously healthy.
func (h *Handler) checkRedis(ctx context.Context) string {
	if h.redisService == nil {
		return "healthy"
	}
	if err := h.redisService.Ping(ctx); err != nil {
		logging.Error(ctx, "redis health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
