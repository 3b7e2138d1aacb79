// Package server assembles the kernel and its wire surface.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/oopisos/kernel/internal/api/http"
	"github.com/oopisos/kernel/internal/api/middleware"
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/commands"
	"github.com/oopisos/kernel/internal/identity"
	"github.com/oopisos/kernel/internal/infrastructure/config"
	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/infrastructure/monitoring"
	"github.com/oopisos/kernel/internal/session"
	"github.com/oopisos/kernel/internal/shell/executor"
	"github.com/oopisos/kernel/internal/storage"
	"github.com/oopisos/kernel/internal/vfs"
	"github.com/oopisos/kernel/internal/ws"
)

// Version identifies the kernel build on the health endpoint.
const Version = "1.0.0"

// Server wraps the HTTP server and the kernel it fronts.
type Server struct {
	router   *gin.Engine
	store    *storage.Bolt
	fs       *vfs.FS
	identity *identity.Manager
	sessions *session.Manager
	exec     *executor.Executor
	registry *command.Registry
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	config   *config.Config
}

// New boots the kernel against its durable store and builds the router.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	logger.Info("Initializing OopisOS kernel",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Path),
	)

	metrics := monitoring.NewMetrics()

	store := storage.NewBolt(cfg.Storage.Path)
	fs := vfs.New(store, logger, vfs.Options{
		MaxSize:     cfg.VFS.MaxSize,
		MaxSymlinks: cfg.VFS.MaxSymlinks,
	})
	idm := identity.NewManager(store, fs, logger, identity.Options{
		SudoTimeout: time.Duration(cfg.Sudo.TimeoutMinutes) * time.Minute,
	})
	sessions := session.NewManager(store, fs, idm, logger, cfg)

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sessions.Boot(bootCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("boot: %w", err)
	}

	registry := command.NewRegistry()
	commands.RegisterAll(registry)
	if manifest, err := registry.Manifest(); err != nil {
		logger.Warn("Failed to render command manifest", zap.Error(err))
	} else if err := sessions.SetManifest(manifest); err != nil {
		logger.Warn("Failed to publish command manifest", zap.Error(err))
	}

	exec := executor.New(registry, fs, idm, sessions, logger, cfg)
	exec.SetObserver(metrics)
	metrics.SetVFSBytes(fs.Usage())

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(sessions, fs, metrics, Version)
	wsHandler := ws.NewHandler(exec, sessions, metrics, logger)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/backup", handlers.Backup)
	router.POST("/restore", handlers.Restore)
	router.POST("/session/save", handlers.SaveSession)
	router.POST("/session/restore", handlers.RestoreSession)

	router.GET("/ws", wsHandler.HandleConnection)

	logger.Info("Kernel initialized",
		zap.Int("commands", len(registry.Names())),
		zap.Int64("vfs_bytes", fs.Usage()),
	)

	return &Server{
		router:   router,
		store:    store,
		fs:       fs,
		identity: idm,
		sessions: sessions,
		exec:     exec,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close persists the filesystem and releases the store.
func (s *Server) Close() error {
	s.logger.Info("Shutting down kernel...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.fs.Save(ctx); err != nil {
		s.logger.Error("Failed to persist filesystem", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close store", zap.Error(err))
		return fmt.Errorf("close store: %w", err)
	}

	s.logger.Sync()
	return nil
}
