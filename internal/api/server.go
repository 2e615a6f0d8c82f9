package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"

	mw "github.com/tphakala/quack-go/internal/api/middleware"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/settings"
)

// Engine is the read side of the sync engine the API exposes.
type Engine interface {
	Catalog() model.Catalog
	SubscribeCatalog() *events.Subscription[model.Catalog]
	CurrentDaily() *model.Entity
	SubscribeDaily() *events.Subscription[*model.Entity]
	RefreshDaily(ctx context.Context) (*model.Entity, error)
	Today() string
}

// Preferences is the settings surface the API edits.
type Preferences interface {
	Values() settings.Values
	SetServerBaseURL(ctx context.Context, raw string) error
	SetShowScientificNames(ctx context.Context, show bool) error
	SetDarkMode(ctx context.Context, dark bool) error
}

// Server is the HTTP server. It manages the Echo instance, middleware and
// every route.
type Server struct {
	echo   *echo.Echo
	config *Config
	logger logger.Logger

	engine         Engine
	prefs          Preferences
	metricsHandler http.Handler
	version        string

	streams atomic.Int64

	// Lifecycle management
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time
	serveErr  chan error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithVersion sets the version reported by /system.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a server for engine and prefs.
func New(config *Config, engine Engine, prefs Preferences, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:    config,
		engine:    engine,
		prefs:     prefs,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		serveErr:  make(chan error, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	if config.AutoTLS {
		s.echo.AutoTLSManager.Prompt = autocert.AcceptTOS
		s.echo.AutoTLSManager.Cache = autocert.DirCache(config.TLSCacheDir)
		s.echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(config.TLSDomain)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.logger.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware must be first
	s.echo.Use(echomw.Recover())

	s.echo.Use(mw.NewRequestLogger(s.logger.Module("http")))

	securityConfig := mw.SecurityConfig{
		AllowedOrigins:        s.config.AllowedOrigins,
		HSTSMaxAge:            mw.HSTSMaxAge,
		HSTSExcludeSubdomains: false,
	}

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip())
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	g := s.echo.Group("/api/v1")

	g.GET("/health", s.healthCheck)
	g.GET("/system", s.GetSystem)

	g.GET("/catalog", s.GetCatalog)
	g.GET("/catalog/:id", s.GetEntity)

	g.GET("/daily", s.GetDaily)
	g.POST("/daily/refresh", s.RefreshDaily)

	g.GET("/settings", s.GetSettings)
	g.PUT("/settings", s.UpdateSettings)

	g.GET("/stream", s.Stream, s.streamRateLimiter())

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	snap := s.engine.Catalog()

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"catalog_size":   snap.Len(),
		"is_loading":     snap.IsLoading,
		"generation":     snap.Generation,
		"streams":        s.streams.Load(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Start begins serving HTTP requests in a background goroutine and returns
// immediately. Use Shutdown to stop the server.
func (s *Server) Start() {
	s.wg.Go(func() {
		if err := s.startBlocking(); err != nil {
			s.logger.Error("server error", logger.Error(err))
			s.serveErr <- err
		}
	})

	s.logger.Info("HTTP server starting", logger.String("address", s.config.Listen))
}

// Errors delivers a fatal serve error, such as a port already in use.
func (s *Server) Errors() <-chan error {
	return s.serveErr
}

// startBlocking serves until the server is shut down.
func (s *Server) startBlocking() error {
	var err error
	if s.config.AutoTLS {
		err = s.echo.StartAutoTLS(s.config.Listen)
	} else {
		err = s.echo.Start(s.config.Listen)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown ends every stream and gracefully stops the server.
func (s *Server) Shutdown() error {
	// Streams watch this context, so cancel before draining connections
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
