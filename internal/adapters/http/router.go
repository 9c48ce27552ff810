package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotebook/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotebook/internal/platform/config"
	"github.com/jsamuelsen/quotebook/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// AuthConfig contains authentication header configuration.
	AuthConfig *config.AuthConfig

	// CORSConfig lists the browser origins allowed to call the API.
	CORSConfig *config.CORSConfig

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// QuoteHandler handles the quote book API.
	QuoteHandler *handlers.QuoteHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. OpenTelemetry - tracing and metrics
//  5. Logging - request logging (skips health endpoints)
//  6. CORS - only when origins are configured
//  7. Timeout - request deadline on /api/v1
//
// Route groups:
//   - /-/ (internal): Health endpoints, no auth required
//   - /api/v1/ (public API): Quote endpoints, auth per route
//
// Quote names are path segments, so the engine matches on the raw path and
// unescapes parameters; a name containing "/" arrives as %2F.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.UseRawPath = true
	engine.UnescapePathValues = true

	// Recovery outermost, then IDs so spans and log lines can carry them.
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.AppConfig.Name)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.CORSConfig != nil && len(cfg.CORSConfig.AllowedOrigins) > 0 {
		engine.Use(corsMiddleware(cfg.CORSConfig, cfg.AuthConfig))
	}

	// Register health endpoints (no auth, no timeout for probes)
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Register(engine)
	}

	// Setup API v1 routes with timeout
	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	// Register API routes
	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers business API routes.
// Voting needs a caller identity; deletes and maintenance need the
// maintainer role when one is configured.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.QuoteHandler == nil {
		return
	}

	guards := handlers.QuoteRouteGuards{
		Voter: middleware.RequireAuth(cfg.AuthConfig),
	}

	if cfg.AuthConfig != nil && cfg.AuthConfig.MaintainerRole != "" {
		guards.Maintainer = middleware.RequireRole(cfg.AuthConfig, cfg.AuthConfig.MaintainerRole)
	}

	cfg.QuoteHandler.RegisterQuoteRoutes(rg, guards)
}

func corsMiddleware(corsCfg *config.CORSConfig, authCfg *config.AuthConfig) gin.HandlerFunc {
	headers := []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-Correlation-ID"}
	if authCfg != nil {
		headers = append(headers, authCfg.SubjectHeader, authCfg.RolesHeader)
	}

	return cors.New(cors.Config{
		AllowOrigins: corsCfg.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:  headers,
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	})
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	quoteHandler *handlers.QuoteHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AuthConfig:    &cfg.Auth,
		CORSConfig:    &cfg.CORS,
		AppConfig:     &cfg.App,
		HealthHandler: healthHandler,
		QuoteHandler:  quoteHandler,
		Timeout:       DefaultRequestTimeout,
	}
}
