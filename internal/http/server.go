// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/allisson/fieldcrypt/internal/config"
	cryptoHTTP "github.com/allisson/fieldcrypt/internal/crypto/http"
	customerHTTP "github.com/allisson/fieldcrypt/internal/customer/http"
	"github.com/allisson/fieldcrypt/internal/metrics"
	rekeyHTTP "github.com/allisson/fieldcrypt/internal/rekey/http"
)

// Server represents the HTTP server
type Server struct {
	db     *sql.DB
	server *http.Server
	logger *slog.Logger
	router *gin.Engine

	tracerProvider trace.TracerProvider
}

// Handlers groups the domain handlers mounted under /v1.
type Handlers struct {
	Customer  *customerHTTP.CustomerHandler
	CryptoKey *cryptoHTTP.CryptoKeyHandler
	Rekey     *rekeyHTTP.RekeyHandler
}

// NewServer creates a new HTTP server
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: newHTTPServer(host, port),
	}
}

// SetupRouter builds the gin engine with middleware and every route.
// ctx bounds background work started by middleware such as limiter cleanup.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	handlers Handlers,
	metricsProvider *metrics.Provider,
) {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(TenantMiddleware(s.logger))
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	if handlers.Customer != nil {
		customers := v1.Group("/customers")
		customers.POST("", handlers.Customer.RegisterHandler)
		customers.GET("", handlers.Customer.FindByEmailHandler)
		customers.GET("/:id", handlers.Customer.GetHandler)
	}

	if handlers.CryptoKey != nil {
		v1.GET("/crypto-keys", handlers.CryptoKey.ListHandler)
	}

	if handlers.Rekey != nil {
		v1.GET("/rekey/status", handlers.Rekey.StatusHandler)
	}

	s.router = router
}

// healthHandler reports that the process is alive.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the database is reachable.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}

// WithTracing makes every request start a server span from tp.
func (s *Server) WithTracing(tp trace.TracerProvider) *Server {
	s.tracerProvider = tp
	return s
}

// Handler returns the router, wrapped with otelhttp when tracing is enabled.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		return nil
	}
	if s.tracerProvider == nil {
		return s.router
	}
	return otelhttp.NewHandler(s.router, "fieldcrypt-api",
		otelhttp.WithTracerProvider(s.tracerProvider),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/ready"
		}),
	)
}

// Start serves the API until Shutdown is called. SetupRouter must run first.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return errors.New("router not configured")
	}
	s.server.Handler = s.Handler()

	return listenAndServe(s.server, s.logger, "http server")
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
