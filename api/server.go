package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dnldd/mtbridge/indicator"
	"github.com/dnldd/mtbridge/terminal"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// ShutdownTimeout bounds the graceful shutdown of the http server.
	ShutdownTimeout = time.Second * 5
	// readHeaderTimeout bounds reading request headers.
	readHeaderTimeout = time.Second * 10
)

// Pool defines the terminal pool requirements of the api.
type Pool interface {
	// HealthSummary probes every terminal and aggregates their health.
	HealthSummary(ctx context.Context) terminal.HealthSummary
	// AdminHealthSummary probes every terminal and aggregates their detailed health.
	AdminHealthSummary(ctx context.Context) terminal.AdminHealthSummary
	// LookupByID returns the connection with the provided terminal id.
	LookupByID(id string) (*terminal.Connection, error)
	// Restart reconnects the terminal with the provided id.
	Restart(ctx context.Context, id string) (terminal.RestartResult, error)
	// RestartAll reconnects every terminal.
	RestartAll(ctx context.Context) terminal.RestartAllResult
	// Stats returns aggregate terminal statistics.
	Stats() terminal.Stats
}

// IndicatorReader defines the indicator pipeline requirements of the api.
type IndicatorReader interface {
	// Read derives indicator data for the provided symbol and timeframe.
	Read(ctx context.Context, symbol string, timeframe string, count int) (*indicator.Result, error)
}

// ServerConfig represents the configuration for the api server.
type ServerConfig struct {
	// Host is the listening host.
	Host string
	// Port is the listening port.
	Port int
	// AdminAPIKey guards the admin routes. Admin routes fail when unset.
	AdminAPIKey string
	// Pool represents the terminal pool.
	Pool Pool
	// Reader represents the indicator pipeline.
	Reader IndicatorReader
	// Debug enables gin debug mode.
	Debug bool
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ServerConfig) Validate() error {
	var errs error

	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = errors.Join(errs, fmt.Errorf("port %d is out of range", cfg.Port))
	}
	if cfg.Pool == nil {
		errs = errors.Join(errs, fmt.Errorf("pool cannot be nil"))
	}
	if cfg.Reader == nil {
		errs = errors.Join(errs, fmt.Errorf("reader cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Server serves the public and admin http routes.
type Server struct {
	cfg        *ServerConfig
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zerolog.Logger
}

// NewServer initializes a new api server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.AdminAPIKey == "" {
		cfg.Logger.Warn().Msg("admin api key not configured, admin routes are disabled")
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(cfg.Logger), cors())

	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: cfg.Logger,
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes registers the public and admin routes.
func (s *Server) setupRoutes() {
	public := s.engine.Group("/api")
	public.GET("/health", s.getHealth)
	public.GET("/symbols", s.getSymbols)
	public.GET("/timeframes", s.getTimeframes)
	public.GET("/indicators/:symbol/:timeframe", s.getIndicators)

	admin := s.engine.Group("/api/admin", adminAuth(s.cfg.AdminAPIKey, s.logger))
	admin.GET("/terminals/health", s.getTerminalsHealth)
	admin.POST("/terminals/restart-all", s.restartAllTerminals)
	admin.GET("/terminals/stats", s.getTerminalStats)
	admin.POST("/terminals/:id/restart", s.restartTerminal)
	admin.GET("/terminals/:id/logs", s.getTerminalLogs)
}

// Handler returns the http handler serving the api routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves http requests until the provided context is cancelled, then
// shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Msgf("serving http on %s", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	s.logger.Info().Msg("http server stopped")

	return nil
}
