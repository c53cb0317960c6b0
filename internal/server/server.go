package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paychunk/paychunk/internal/audit"
	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	"github.com/paychunk/paychunk/internal/config"
	"github.com/paychunk/paychunk/internal/observability"
	obsmiddleware "github.com/paychunk/paychunk/internal/observability/logger"
	obsmetrics "github.com/paychunk/paychunk/internal/observability/metrics"
	obstracing "github.com/paychunk/paychunk/internal/observability/tracing"
	"github.com/paychunk/paychunk/internal/platform"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	"github.com/paychunk/paychunk/internal/ratelimit"
	"github.com/paychunk/paychunk/internal/resource"
	resourcedomain "github.com/paychunk/paychunk/internal/resource/domain"
	"github.com/paychunk/paychunk/internal/session"
	sessiondomain "github.com/paychunk/paychunk/internal/session/domain"
	"github.com/paychunk/paychunk/internal/wallet"
	walletdomain "github.com/paychunk/paychunk/internal/wallet/domain"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	audit.Module,
	platform.Module,
	resource.Module,
	session.Module,
	wallet.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	platformSvc platformdomain.Service
	resourceSvc resourcedomain.Service
	sessionSvc  sessiondomain.Service
	walletSvc   walletdomain.Service
	auditSvc    auditdomain.Service
	obsMetrics  *obsmetrics.Metrics
	limiter     *ratelimit.SettlementLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	PlatformSvc platformdomain.Service
	ResourceSvc resourcedomain.Service
	SessionSvc  sessiondomain.Service
	WalletSvc   walletdomain.Service
	AuditSvc    auditdomain.Service
	ObsMetrics  *obsmetrics.Metrics          `optional:"true"`
	Limiter     *ratelimit.SettlementLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		platformSvc: p.PlatformSvc,
		resourceSvc: p.ResourceSvc,
		sessionSvc:  p.SessionSvc,
		walletSvc:   p.WalletSvc,
		auditSvc:    p.AuditSvc,
		obsMetrics:  p.ObsMetrics,
		limiter:     p.Limiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Platform --------
	api.POST("/platform", s.AccountRequired(), s.InitializePlatform)
	api.GET("/platform", s.GetPlatform)

	// -------- Resources --------
	api.GET("/resources", s.ListResources)
	api.POST("/resources", s.AccountRequired(), s.CreateResource)
	api.GET("/resources/:id", s.GetResource)
	api.PATCH("/resources/:id", s.AccountRequired(), s.UpdateResource)
	api.GET("/resources/:id/earnings", s.GetResourceEarnings)

	// -------- Sessions --------
	// The caller identified by X-Account-ID is the consumer; one session per
	// consumer and resource.
	sessions := api.Group("/sessions", s.AccountRequired())
	{
		sessions.GET("", s.ListSessions)
		sessions.GET("/:resource_id", s.GetSession)
		sessions.POST("/:resource_id/authorize", s.AuthorizeSession)
		sessions.POST("/:resource_id/units/:index/pay", s.SettleRateLimit(), s.PayUnit)
		sessions.POST("/:resource_id/settle", s.SettleRateLimit(), s.SettleSession)
		sessions.POST("/:resource_id/revoke", s.RevokeDelegation)
		sessions.DELETE("/:resource_id", s.CloseSession)
	}

	// -------- Wallet --------
	wallet := api.Group("/wallet", s.AccountRequired())
	{
		wallet.GET("", s.GetWalletAccount)
		wallet.POST("/deposit", s.Deposit)
	}

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}
