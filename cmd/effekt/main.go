package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/xim/effekt-backend/internal/audit"
	"github.com/xim/effekt-backend/internal/clock"
	"github.com/xim/effekt-backend/internal/config"
	"github.com/xim/effekt-backend/internal/distribution"
	"github.com/xim/effekt-backend/internal/donation"
	"github.com/xim/effekt-backend/internal/donor"
	"github.com/xim/effekt-backend/internal/logger"
	"github.com/xim/effekt-backend/internal/migration"
	"github.com/xim/effekt-backend/internal/notification"
	"github.com/xim/effekt-backend/internal/observability/tracing"
	"github.com/xim/effekt-backend/internal/organization"
	"github.com/xim/effekt-backend/internal/parsing"
	"github.com/xim/effekt-backend/internal/payment"
	"github.com/xim/effekt-backend/internal/reconciliation"
	"github.com/xim/effekt-backend/internal/seed"
	"github.com/xim/effekt-backend/internal/server"
	"github.com/xim/effekt-backend/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(func(cfg config.Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.TracingEnabled,
				ServiceName:      "effekt-backend",
				ServiceVersion:   version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.TracingEndpoint,
				ExporterProtocol: cfg.TracingProtocol,
				SamplingRatio:    cfg.TracingSamplingRatio,
			}
		}),
		tracing.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsureBaseline(conn)
		}),
		organization.Module,
		donor.Module,
		distribution.Module,
		donation.Module,
		parsing.Module,
		payment.Module,
		notification.Module,
		audit.Module,
		reconciliation.Module,
		server.Module,
	)
	app.Run()
}
