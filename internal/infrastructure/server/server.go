package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/DeviceMatrix/backend/internal/api/http"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/api/middleware"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/api/ws"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/device"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/workspace"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

const sqliteFile = "devicematrix.db"

// Server wraps the HTTP server and dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	store    persistence.RecordStore
	hub      *ws.Hub
	manager  *workspace.Manager
	router   *gin.Engine
	http     *http.Server
}

// Option customizes server construction
type Option func(*options)

type options struct {
	logger *logging.Logger
}

// WithLogger replaces the logger built from configuration
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing DeviceMatrix server",
		zap.String("addr", cfg.Address()),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("storage_path", cfg.Storage.Path),
	)

	// Metrics live on a private registry so /metrics only shows ours
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New("devicematrix", logger.Component("tracing"))

	catalog, err := loadCatalog(ctx, cfg.Catalog, logger)
	if err != nil {
		return nil, err
	}
	strategies, err := device.StrategyOptions(cfg.Workspace.Strategies)
	if err != nil {
		return nil, fmt.Errorf("invalid device strategies: %w", err)
	}
	generator, err := device.NewGenerator(catalog, strategies...)
	if err != nil {
		return nil, apperr.Generation("server.catalog", err)
	}
	generator.WithMetrics(metrics)

	defaults, err := persistence.ValidateSettings(generator, types.Settings{
		DefaultURL:       cfg.Workspace.DefaultURL,
		DeviceStrategy:   cfg.Workspace.DeviceStrategy,
		AutoSaveInterval: cfg.Workspace.AutoSaveInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid workspace defaults: %w", err)
	}

	inner, err := persistence.Open(cfg.Storage.Driver, storagePath(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	store := persistence.NewGuardedStore(inner, cfg.Storage.Driver, persistence.GuardOptions{
		Logger:  logger.Component("store"),
		Metrics: metrics,
	})
	gateway := persistence.NewGateway(store, generator, defaults, logger.Component("persistence")).
		WithMetrics(metrics)

	hub := ws.NewHub(logger.Component("ws")).WithMetrics(metrics)
	manager := workspace.New(workspace.Deps{
		Generator: generator,
		Gateway:   gateway,
		Notifier: workspace.MultiNotifier{
			workspace.NewLogNotifier(logger.Component("notify")),
			hub,
		},
		Renderer:     hub,
		Logger:       logger.Component("workspace"),
		Metrics:      metrics,
		Sandbox:      cfg.Workspace.FrameSandbox,
		BatchWorkers: cfg.Workspace.BatchWorkers,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	apihttp.NewHandlers(manager, metrics).Register(router)
	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	s := &Server{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		tracer:   tracer,
		store:    store,
		hub:      hub,
		manager:  manager,
		router:   router,
	}
	s.http = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the root handler. Responses are gzip-compressed except on
// the WebSocket stream, which must stay hijackable.
func (s *Server) Handler() http.Handler {
	compressed := gzhttp.GzipHandler(s.router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stream" {
			s.router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

// Start restores the workspace and arms autosave
func (s *Server) Start(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workspace: %w", err)
	}
	return nil
}

// Run serves HTTP until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, disconnects stream clients and saves the
// workspace one last time
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.hub.Close()
	if err := s.manager.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final save: %w", err))
	}
	s.tracer.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close record store: %w", err))
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

// Manager exposes the workspace for embedding and tests
func (s *Server) Manager() *workspace.Manager {
	return s.manager
}

func loadCatalog(ctx context.Context, cfg config.CatalogConfig, logger *logging.Logger) (device.Catalog, error) {
	switch {
	case cfg.Path != "":
		catalog, err := device.LoadFile(cfg.Path)
		if err != nil {
			return device.Catalog{}, apperr.Generation("server.catalog", err)
		}
		logger.Info("Loaded device catalog", zap.String("path", cfg.Path))
		return catalog, nil
	case cfg.URL != "":
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		catalog, err := device.Fetch(fetchCtx, device.NewFetchClient(), cfg.URL)
		if err != nil {
			return device.Catalog{}, apperr.Generation("server.catalog", err)
		}
		logger.Info("Fetched device catalog", zap.String("url", cfg.URL))
		return catalog, nil
	default:
		return device.DefaultCatalog(), nil
	}
}

// storagePath resolves the sqlite database file inside STORAGE_PATH unless a
// file name was given
func storagePath(cfg config.StorageConfig) string {
	if cfg.Driver != persistence.DriverSQLite {
		return cfg.Path
	}
	if cfg.Path == ":memory:" || strings.HasSuffix(cfg.Path, ".db") || strings.HasSuffix(cfg.Path, ".sqlite") {
		return cfg.Path
	}
	return filepath.Join(cfg.Path, sqliteFile)
}
