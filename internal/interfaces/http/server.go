// Package http provides the HTTP adapter for the travel desk engine.
// It translates requests into application service calls and maps domain
// errors onto status codes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SignatureVerifier authenticates inbound partner callbacks
type SignatureVerifier interface {
	Verify(timestamp, signature string, body []byte) error
}

// HealthChecker reports whether the process can serve traffic
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	// ShutdownTimeout bounds the graceful drain of open requests
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Services bundles the application services exposed over HTTP
type Services struct {
	Trips         service.TripService
	Cancellations service.CancellationService
	Reschedules   service.RescheduleService
	Documents     service.DocumentService
	AutoClose     service.AutoCloseService
	Directory     port.Directory
	Verifier      SignatureVerifier
	Health        HealthChecker
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	limiter    *CallerRateLimiter
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		limiter:  NewCallerRateLimiter(config.RateLimitRPS, config.RateLimitBurst),
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(loggingMiddleware(s.logger))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.services, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api/v1")

	// Partner callbacks authenticate by signature rather than caller header
	api.POST("/partner/callback", s.limiter.Middleware(), handlers.PartnerCallback)

	authed := api.Group("", callerMiddleware(), s.limiter.Middleware())
	{
		authed.POST("/trips", handlers.CreateTrip)
		authed.GET("/trips", handlers.ListTrips)
		authed.GET("/trips/:id", handlers.GetTrip)
		authed.POST("/trips/:id/options/select", handlers.SelectOption)
		authed.POST("/trips/:id/options/choose", handlers.ChooseOption)
		authed.POST("/trips/:id/options-uploaded", handlers.MarkOptionsUploaded)
		authed.POST("/trips/:id/booking", handlers.RecordBooking)
		authed.POST("/trips/:id/visa", handlers.RecordVisaUpload)
		authed.POST("/trips/:id/close", handlers.CloseTrip)
		authed.POST("/trips/:id/cancellation", handlers.RequestCancellation)
		authed.POST("/trips/:id/cancellation/confirm", handlers.ConfirmCancellation)
		authed.POST("/trips/:id/reschedule", handlers.Reschedule)
		authed.POST("/trips/:id/files", handlers.AttachFile)
		authed.GET("/trips/:id/files", handlers.ListFiles)

		authed.GET("/approvals", handlers.ListPendingApprovals)
		authed.POST("/approvals/:id/decision", handlers.Decide)

		authed.POST("/admin/auto-close", handlers.RunAutoClose)
	}
}

// Start binds the listener and serves until ctx is cancelled, then drains
// open requests
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.logger.Info("HTTP server listening", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop drains open requests within the shutdown timeout
func (s *Server) Stop() error {
	s.limiter.Close()

	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
