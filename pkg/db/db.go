package db

import (
	"context"
	"errors"

	"github.com/xim/effekt-backend/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database and sizes the connection pool.
// The handle is the single shared resource in the process; everything else
// receives it by injection.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("missing_database_dsn")
	}

	var conn *gorm.DB
	err := WithRetry(context.Background(), log, defaultRetryAttempts, func(ctx context.Context) error {
		var openErr error
		conn, openErr = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		return openErr
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxAge)

	log.Info("database connected",
		zap.Int("max_open_conns", cfg.DBMaxOpenConns),
		zap.Int("max_idle_conns", cfg.DBMaxIdleConns),
	)
	return conn, nil
}

var Module = fx.Module("db",
	fx.Provide(Open),
)
