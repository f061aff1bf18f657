package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// AppInfo is reported by GET /health/info.
type AppInfo struct {
	App     string
	Version string
	Driver  string
	// Stats, when set, adds backend statistics (pool usage).
	Stats func() any
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	info    AppInfo
	checks  map[string]Pinger
	started time.Time
	timeout time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(info AppInfo, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		info:    info,
		checks:  checks,
		started: time.Now(),
		timeout: 2 * time.Second,
	}
}

// RegisterRoutes mounts the probes on rg.
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Live)
	rg.GET("/ready", h.Ready)
	rg.GET("/info", h.Info)
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			status, code = "error", http.StatusServiceUnavailable
			continue
		}
		results[name] = "healthy"
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": results,
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     h.info.App,
		"version": h.info.Version,
		"driver":  h.info.Driver,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if h.info.Stats != nil {
		body["storage"] = h.info.Stats()
	}
	c.JSON(http.StatusOK, body)
}
