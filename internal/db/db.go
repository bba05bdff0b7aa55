package db

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/env"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

/*
Service owns the GORM handle for schedule, price-sample and saga-audit rows.

Behavior:
  - DB_DRIVER selects the backend: "postgres" for deployments, "sqlite"
    (the default) for local runs and CI.
  - Migrations are additive AutoMigrate only; the schedule tables are
    append-only so there is nothing destructive to run.
*/
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(baseLog *logger.Logger) (*Service, error) {
	serviceLog := baseLog.With("service", "DBService")
	driver := env.Get("DB_DRIVER", "sqlite", baseLog)

	gormLog := gormLogger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var (
		handle *gorm.DB
		err    error
	)
	switch driver {
	case "postgres":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			env.Get("POSTGRES_USER", "postgres", baseLog),
			env.Get("POSTGRES_PASSWORD", "", baseLog),
			env.Get("POSTGRES_HOST", "localhost", baseLog),
			env.Get("POSTGRES_PORT", "5432", baseLog),
			env.Get("POSTGRES_NAME", "scheduler", baseLog),
		)
		handle, err = gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		path := env.Get("SQLITE_PATH", "scheduler.db", baseLog)
		handle, err = gorm.Open(sqlite.Open(path), cfg)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	serviceLog.Info("Database connected", "driver", driver)
	return &Service{db: handle, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Migrate() error {
	return s.db.AutoMigrate(
		&types.ScheduleWeek{},
		&types.ScheduleRow{},
		&types.PriceSample{},
		&types.SagaExecutionRow{},
	)
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
