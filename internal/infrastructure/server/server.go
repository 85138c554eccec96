package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/tasq/core/docs"
	"github.com/tasq/core/internal/adapters/cache"
	httpHandlers "github.com/tasq/core/internal/adapters/http"
	"github.com/tasq/core/internal/adapters/repository"
	"github.com/tasq/core/internal/adapters/storage"
	"github.com/tasq/core/internal/application/services"
	"github.com/tasq/core/internal/infrastructure/config"
	"github.com/tasq/core/internal/infrastructure/database"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/infrastructure/metrics"
	"github.com/tasq/core/internal/ports"
)

// HealthChecker probes one backing service
type HealthChecker func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	db      *database.DB
	checks  map[string]HealthChecker
}

// New creates a new server instance. redisCache may be nil, in which case
// dashboard aggregates are computed on every request.
func New(cfg *config.Config, db *database.DB, store *storage.JetStreamStore, redisCache *cache.RedisCache, appLogger *logger.Logger) (*Server, error) {
	server := newServer(cfg, appLogger)
	server.db = db

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	taskRepo := repository.NewTaskRepository(db.DB)

	var cacheRepo ports.CacheRepository = cache.NoopCache{}
	if redisCache != nil {
		cacheRepo = redisCache
		server.checks["redis"] = redisCache.Ping
	}
	server.checks["database"] = db.Ping
	server.checks["storage"] = func(context.Context) error {
		if !store.IsConnected() {
			return fmt.Errorf("nats connection is not established")
		}
		return nil
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, cfg.JWT, appLogger)
	taskService := services.NewTaskService(
		taskRepo,
		services.NewAssigneeResolver(userRepo, appLogger),
		services.NewUploader(store, cfg.Storage, server.metrics, appLogger),
		services.NewTaskQueryEngine(taskRepo, cfg.Tasks),
		services.NewAnalyticsAggregator(taskRepo, cacheRepo, cfg.Analytics, server.metrics, appLogger),
		server.metrics,
		appLogger,
	)

	// Initialize handlers
	taskHandler := httpHandlers.NewTaskHandler(taskService, appLogger)
	fileHandler := httpHandlers.NewFileHandler(store, appLogger)

	server.setupRoutes(taskHandler, fileHandler, authService)

	return server, nil
}

func newServer(cfg *config.Config, appLogger *logger.Logger) *Server {
	e := echo.New()

	e.Validator = httpHandlers.NewRequestValidator()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.HTTPErrorHandler = httpHandlers.ErrorHandler(appLogger)

	s := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger.WithComponent("server"),
		checks: make(map[string]HealthChecker),
	}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	s.setupMiddleware()
	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
				"request_id", values.RequestID,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Warnw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	if s.metrics != nil {
		s.echo.Use(s.metrics.Middleware())
	}

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))

	if s.config.Security.RateLimitRequests > 0 {
		window := s.config.Security.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Path(), "/files/")
			},
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(s.config.Security.RateLimitRequests) / window.Seconds()),
				Burst:     s.config.Security.RateLimitRequests,
				ExpiresIn: window,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return echo.NewHTTPError(http.StatusForbidden, "Rate limit identifier unavailable")
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			},
		}))
	}

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	if s.config.Server.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.config.Server.BodyLimit))
	}

	if s.config.Server.RequestTimeout > 0 {
		s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Path(), "/files/")
			},
			Timeout:      s.config.Server.RequestTimeout,
			ErrorMessage: `{"success":false,"message":"Request timed out"}`,
		}))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(taskHandler *httpHandlers.TaskHandler, fileHandler *httpHandlers.FileHandler, authService ports.AuthService) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Attachment downloads are public; URLs carry unguessable object names
	s.echo.GET("/files/*", fileHandler.GetFile)

	v1 := s.echo.Group("/api/v1")
	taskHandler.Register(v1.Group("/tasks", s.authMiddleware(authService)))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status, checks := s.runChecks(c.Request().Context())

	if s.db != nil {
		if db, ok := checks["database"].(map[string]interface{}); ok && db["status"] == "ok" {
			db["stats"] = s.db.PoolStats()
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	status, checks := s.runChecks(c.Request().Context())
	if status != "ok" {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": checks,
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) runChecks(ctx context.Context) (string, map[string]interface{}) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]interface{}, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = "error"
			checks[name] = map[string]interface{}{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]interface{}{"status": "ok"}
	}
	return status, checks
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}
