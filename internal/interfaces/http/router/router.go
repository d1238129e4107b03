package router

import (
	"fmt"

	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures the middleware chain of NewEngine
type EngineConfig struct {
	Env            string
	ServiceName    string
	TracingEnabled bool
	TrustedProxies []string
	BodyLimit      int64
}

// NewEngine builds a gin engine with recovery, request logging, tracing and
// the body limit installed in that order
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	limit := cfg.BodyLimit
	if limit <= 0 {
		limit = middleware.DefaultBodyLimit
	}

	engine.Use(logger.Recovery(log), logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	})...)
	engine.Use(middleware.BodyLimit(limit))
	return engine, nil
}
