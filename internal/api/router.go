package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/pixel-analytics/pixel/docs"
	"github.com/pixel-analytics/pixel/internal/api/handler"
	"github.com/pixel-analytics/pixel/internal/api/middleware"
	"github.com/pixel-analytics/pixel/internal/core/ports"
)

const DefaultEventsPath = "/api/events"

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	EventsPath     string
	AllowedOrigins []string

	// Basic auth for /metrics; disabled when either is empty.
	MetricsUser         string
	MetricsPasswordHash string

	// Registry for HTTP metrics. Defaults to the global Prometheus registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(
	cfg RouterConfig,
	gateway ports.EventGateway,
	checks map[string]ports.HealthChecker,
	log zerolog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = newSonicSerializer()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	var (
		registerer = prometheus.DefaultRegisterer
		gatherer   = prometheus.DefaultGatherer
	)
	if cfg.Registry != nil {
		registerer, gatherer = cfg.Registry, cfg.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "pixel_http",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	// --- Events ---
	eventsPath := cfg.EventsPath
	if eventsPath == "" {
		eventsPath = DefaultEventsPath
	}
	eventHandler := handler.NewEventHandler(gateway, log)
	e.POST(eventsPath, eventHandler.Receive, middleware.Identity(gateway, log))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(checks)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Metrics and docs ---
	metricsHandler := echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer})
	if cfg.MetricsUser != "" && cfg.MetricsPasswordHash != "" {
		e.GET("/metrics", metricsHandler, middleware.MetricsAuth(cfg.MetricsUser, cfg.MetricsPasswordHash))
	} else {
		e.GET("/metrics", metricsHandler)
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
