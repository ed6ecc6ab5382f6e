package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/GriffinCanCode/webterm/internal/api/http"
	"github.com/GriffinCanCode/webterm/internal/api/middleware"
	"github.com/GriffinCanCode/webterm/internal/api/ws"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/config"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/webterm/internal/providers/terminal"
)

// quietRoutes are polled continuously by the browser and logged at debug level
var quietRoutes = []string{"/read", "/metrics"}

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	manager *terminal.Manager
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// Option customizes server construction
type Option func(*options)

type options struct {
	spawn terminal.SpawnFunc
}

// WithSpawner replaces the PTY spawner
func WithSpawner(spawn terminal.SpawnFunc) Option {
	return func(o *options) { o.spawn = spawn }
}

// NewServer creates a new server instance and starts the shell.
// A *terminal.SpawnError means the shell could not be started.
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewDefault()
	}

	termOpts := cfg.Terminal.Options()
	logger.Info("Initializing web terminal",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("shell", termOpts.Shell),
		zap.String("encoding", termOpts.Encoding),
		zap.Duration("command_timeout", termOpts.CommandTimeout),
		zap.Duration("poll_timeout", termOpts.PollTimeout),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("webterm", logger.Logger, quietRoutes...)

	guard := resilience.New("restart", resilience.Settings{
		Threshold: cfg.Terminal.RestartMaxFailures,
		Cooldown:  cfg.Terminal.RestartCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Restart guard state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	manager := terminal.NewManager(termOpts, logger.Logger).
		WithMetrics(metrics).
		WithRestartGuard(guard)
	if o.spawn != nil {
		manager.WithSpawner(o.spawn)
	}

	info, err := manager.Start()
	if err != nil {
		tracer.Close()
		return nil, err
	}
	logger.Info("Shell started",
		zap.String("session_id", info.ID),
		zap.String("shell", info.Shell),
		zap.Int("pid", info.Pid),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.RequestLogger(logger.Named("access").Logger, quietRoutes...))
	if cfg.CORS.Enabled {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowOrigins = cfg.CORS.AllowOrigins
		router.Use(middleware.CORS(corsCfg))
	}
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := httpapi.NewHandlers(manager, metrics, tracer, logger.Logger).
		WithRestart(cfg.Terminal.AllowRestart)
	handlers.Register(router)

	wsHandler := ws.NewHandler(manager, metrics, logger.Logger, cfg.Terminal.StreamInterval)
	router.GET("/stream", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		manager: manager,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		http: &http.Server{
			Addr:    cfg.Server.Addr(),
			Handler: router,
		},
	}, nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then kills
// the shell
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.manager.Close(); err != nil {
		s.logger.Error("Failed to close shell session", zap.Error(err))
		errs = append(errs, fmt.Errorf("close session: %w", err))
	} else {
		s.logger.Info("Closed shell session")
	}
	s.tracer.Close()

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}
