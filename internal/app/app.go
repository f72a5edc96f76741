package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/config"
	"github.com/replyflow/core/internal/database"
	"github.com/replyflow/core/internal/middleware"
	pkgcron "github.com/replyflow/core/internal/pkg/cron"
	"github.com/replyflow/core/internal/pkg/metrics"
	pkgredis "github.com/replyflow/core/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	db      *gorm.DB
	rc      *pkgredis.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
	cancel  context.CancelFunc
	sched   *pkgcron.Scheduler
	started time.Time
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	applyRuntimeSettings(cfg, logger)

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	app := &App{
		cfg:     cfg,
		router:  router,
		db:      db,
		rc:      rc,
		metrics: metrics.New(),
		logger:  logger,
		sched:   pkgcron.New(logger),
		started: time.Now(),
	}

	svcs, err := app.buildServices()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	registerCronJobs(app.sched, svcs, cfg, logger)
	go app.sched.Start(ctx)

	app.registerRoutes(svcs)
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduler and closes the connections.
func (a *App) Shutdown() {
	a.cancel()
	if err := a.rc.Raw().Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
}
