package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping() error
}

// HealthReporter reports whether the event broker connection is usable.
type HealthReporter interface {
	IsHealthy() bool
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db        Pinger
	publisher HealthReporter
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db Pinger, publisher HealthReporter) *HealthHandler {
	return &HealthHandler{db: db, publisher: publisher}
}

// Live handles GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /healthz
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{"database": "up", "events": "up"}
	status := http.StatusOK

	if err := h.db.Ping(); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	}
	if h.publisher != nil && !h.publisher.IsHealthy() {
		checks["events"] = "down"
		status = http.StatusServiceUnavailable
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
