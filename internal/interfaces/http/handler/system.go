package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/erp/marketsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether one dependency is usable
type HealthCheck func(ctx context.Context) error

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]HealthCheck
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
	}
}

// AddCheck registers a dependency check used by the health endpoint
func (h *SystemHandler) AddCheck(name string, check HealthCheck) *SystemHandler {
	h.checks[name] = check
	return h
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/system")
	g.GET("/info", h.GetSystemInfo)
	g.GET("/ping", h.Ping)
	g.GET("/health", h.Health)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns the build version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping answers without touching any dependency
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// HealthResponse lists each dependency check result
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health runs every registered check with a short timeout
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
