package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/anomaly"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/batch"
	redisclient "github.com/kyle-eros/eros-schedule-generator-sub006/internal/clients/redis"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/db"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/handlers"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/observability"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/repos"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/resilience"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/rotation"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/saga"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/scheduler"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/server"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/statestore"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/volume"
)

type App struct {
	Log       *logger.Logger
	Cfg       Config
	DB        *db.Service
	Router    *gin.Engine
	Scheduler *scheduler.Service

	srv          *http.Server
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "schedule-core",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	dbSvc, err := db.NewService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbSvc.Migrate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("database migrate: %w", err)
	}

	store, err := wireStateStore(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	catalog := rotation.NewDefaultCatalog()
	if cfg.RotationPatternsPath != "" {
		catalog, err = rotation.LoadCatalog(cfg.RotationPatternsPath)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("load rotation patterns: %w", err)
		}
	}

	tracker := rotation.NewTracker(log, store, catalog)
	breaker := resilience.NewBreaker(log, "state-store", resilience.BreakerConfig{
		FailureThreshold:   uint32(cfg.BreakerFailureThreshold),
		RecoveryTimeout:    cfg.BreakerRecoveryTimeout,
		HalfOpenProbeCount: uint32(cfg.BreakerProbeCount),
	})
	guard := resilience.NewGuard(log, store, cfg.IdempotencyTTL)

	scheduleRepo := repos.NewScheduleRepo(dbSvc.DB(), log)
	priceRepo := repos.NewPriceHistoryRepo(dbSvc.DB(), log)
	sagaLogRepo := repos.NewSagaLogRepo(dbSvc.DB(), log)

	coordinator := saga.NewCoordinator(log, tracker, breaker, guard, store, sagaLogRepo, saga.CoordinatorConfig{
		StepTimeout:  cfg.StepTimeout,
		AllowNextDay: cfg.AllowNextDay,
	})

	svc := scheduler.NewService(
		log,
		volume.NewCalculator(log),
		coordinator,
		anomaly.NewValidator(log),
		batch.NewOrchestrator(log, cfg.PoolSize),
		scheduleRepo,
		priceRepo,
	)

	handler := handlers.NewSchedulerHandler(log, svc, scheduleRepo, sagaLogRepo)
	router := server.NewRouter(server.RouterConfig{
		SchedulerHandler: handler,
		AllowOrigins:     cfg.AllowOrigins,
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           dbSvc,
		Router:       router,
		Scheduler:    svc,
		otelShutdown: otelShutdown,
	}, nil
}

func wireStateStore(log *logger.Logger, cfg Config) (statestore.Store, error) {
	switch cfg.StateStore {
	case "redis":
		rdb, err := redisclient.NewClient(log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		return statestore.NewRedisStore(log, rdb)
	case "memory":
		log.Warn("Using in-memory state store; rotation state will not survive restarts")
		return statestore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STATE_STORE %q", cfg.StateStore)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.srv = &http.Server{Addr: addr, Handler: a.Router}
	if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests until
// ctx expires. Safe to call before Run.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.srv == nil {
		return nil
	}
	return a.srv.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
