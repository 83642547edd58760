package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Pinger is satisfied by the solution cache
type Pinger interface {
	Ping(ctx context.Context) error
}

type breakerReporter interface {
	BreakerState() gobreaker.State
}

// HealthChecker is satisfied by the database connection
type HealthChecker interface {
	HealthCheck() error
}

// HealthStatus is the body of the health endpoints
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	optimization *OptimizationHandler
	cache        Pinger
	db           HealthChecker
	logger       *logrus.Logger
}

// NewHealthHandler creates a new health handler; cache and db are optional
func NewHealthHandler(optimization *OptimizationHandler, cache Pinger, db HealthChecker, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		optimization: optimization,
		cache:        cache,
		db:           db,
		logger:       logger,
	}
}

// GetHealth reports liveness plus the state of optional dependencies.
// A failing cache only degrades the service since solves still work without it.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := HealthStatus{
		Status:    "ok",
		Service:   "fpl-optimizer",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			response.Status = "degraded"
			response.Checks["database"] = "failed: " + err.Error()
		} else {
			response.Checks["database"] = "ok"
		}
	} else {
		response.Checks["database"] = "not_configured"
	}

	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			response.Status = "degraded"
			response.Checks["redis"] = "failed: " + err.Error()
		} else {
			response.Checks["redis"] = "ok"
		}
		if b, ok := h.cache.(breakerReporter); ok {
			response.Checks["redis_breaker"] = b.BreakerState().String()
		}
	} else {
		response.Checks["redis"] = "not_configured"
	}

	c.JSON(http.StatusOK, response)
}

// GetReady is ready once a player snapshot is loaded
func (h *HealthHandler) GetReady(c *gin.Context) {
	response := HealthStatus{
		Status:    "ready",
		Service:   "fpl-optimizer",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if ds := h.optimization.Dataset(); ds != nil {
		response.Checks["dataset"] = "ok"
	} else {
		response.Status = "not_ready"
		response.Checks["dataset"] = "not_loaded"
	}

	statusCode := http.StatusOK
	if response.Status != "ready" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}
