package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// SystemHandler serves the health probe.
type SystemHandler struct {
	version string
	checks  map[string]CheckFunc
}

// NewSystemHandler creates the handler. checks maps a dependency name
// (cache, broker, database) to its probe.
func NewSystemHandler(version string, checks map[string]CheckFunc) *SystemHandler {
	return &SystemHandler{version: version, checks: checks}
}

// Register mounts the system routes.
func (h *SystemHandler) Register(engine *gin.Engine) {
	engine.GET("/health", h.Health)
}

// Health reports per-dependency reachability. Any failing dependency
// degrades the overall status to 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = "down: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "up"
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       overall,
		"version":      h.version,
		"dependencies": deps,
	})
}
