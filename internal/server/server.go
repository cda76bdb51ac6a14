package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/xim/effekt-backend/internal/audit/domain"
	"github.com/xim/effekt-backend/internal/config"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	donationdomain "github.com/xim/effekt-backend/internal/donation/domain"
	donordomain "github.com/xim/effekt-backend/internal/donor/domain"
	"github.com/xim/effekt-backend/internal/logger"
	"github.com/xim/effekt-backend/internal/observability/metrics"
	organizationdomain "github.com/xim/effekt-backend/internal/organization/domain"
	"github.com/xim/effekt-backend/internal/payment/paypal"
	"github.com/xim/effekt-backend/internal/payment/vipps"
	reconciliationdomain "github.com/xim/effekt-backend/internal/reconciliation/domain"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	Donors         donordomain.Service
	Organizations  organizationdomain.Service
	Distributions  distributiondomain.Service
	Donations      donationdomain.Service
	Reconciliation reconciliationdomain.Service
	Vipps          *vipps.Client
	PayPal         *paypal.Client
	Audits         auditdomain.Repository
}

type Server struct {
	cfg               config.Config
	db                *gorm.DB
	log               *zap.Logger
	donorSvc          donordomain.Service
	organizationSvc   organizationdomain.Service
	distributionSvc   distributiondomain.Service
	donationSvc       donationdomain.Service
	reconciliationSvc reconciliationdomain.Service
	vipps             *vipps.Client
	paypal            *paypal.Client
	auditRepo         auditdomain.Repository

	// Report ingestion is an expensive admin operation. One report per
	// minute per client is generous for legitimate use.
	reportLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:               p.Cfg,
		db:                p.DB,
		log:               p.Log.Named("server"),
		donorSvc:          p.Donors,
		organizationSvc:   p.Organizations,
		distributionSvc:   p.Distributions,
		donationSvc:       p.Donations,
		reconciliationSvc: p.Reconciliation,
		vipps:             p.Vipps,
		paypal:            p.PayPal,
		auditRepo:         p.Audits,
		reportLimiter:     newRateLimiter(10, time.Minute),
	}
}

func NewEngine(s *Server, cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Log:       log.Named("http"),
		SkipPaths: []string{"/healthz"},
	}))

	httpMetrics, err := metrics.NewHTTPMetrics(metrics.Config{
		ServiceName: "effekt",
		Environment: cfg.Environment,
	}, otel.GetMeterProvider())
	if err != nil {
		log.Warn("http metrics disabled", zap.Error(err))
	}
	engine.Use(metrics.GinMiddleware(httpMetrics))

	engine.GET("/healthz", s.Health)

	engine.GET("/organizations", s.ListOrganizations)

	engine.POST("/donors", s.RegisterDonor)
	engine.GET("/donors/:id", s.GetDonor)
	engine.GET("/donors", s.SearchDonors)

	engine.POST("/donations/register", s.RegisterDonation)
	engine.POST("/donations/:id/confirm", s.ConfirmDonation)
	engine.GET("/donations/:id", s.GetDonation)
	engine.GET("/donations", s.ListDonations)
	engine.GET("/donations/total", s.DonationTotal)
	engine.GET("/donations/histogram", s.DonationHistogram)

	engine.GET("/distributions", s.ListDistributions)
	engine.GET("/distributions/:kid", s.GetDistribution)

	engine.POST("/reports/vipps", s.IngestVippsReport)
	engine.GET("/reports/audits", s.ListReportAudits)

	return engine
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Provide(NewEngine),
	fx.Invoke(RunHTTP),
)
