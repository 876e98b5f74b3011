package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streamcart/streamcart/internal/account"
	"github.com/streamcart/streamcart/internal/audit"
	auditdomain "github.com/streamcart/streamcart/internal/audit/domain"
	"github.com/streamcart/streamcart/internal/catalog"
	catalogdomain "github.com/streamcart/streamcart/internal/catalog/domain"
	"github.com/streamcart/streamcart/internal/config"
	"github.com/streamcart/streamcart/internal/livesale"
	livesaledomain "github.com/streamcart/streamcart/internal/livesale/domain"
	obsmetrics "github.com/streamcart/streamcart/internal/observability/metrics"
	obstracing "github.com/streamcart/streamcart/internal/observability/tracing"
	"github.com/streamcart/streamcart/internal/order"
	"github.com/streamcart/streamcart/internal/ratelimit"
	"github.com/streamcart/streamcart/internal/reservation"
	reservationdomain "github.com/streamcart/streamcart/internal/reservation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	audit.Module,
	account.Module,
	catalog.Module,
	reservation.Module,
	order.Module,
	livesale.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	genID  *snowflake.Node

	auditSvc       auditdomain.Service
	catalogSvc     catalogdomain.Service
	reservationSvc reservationdomain.Service
	livesaleSvc    livesaledomain.Service
	claimLimiter   *ratelimit.ClaimLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	DB             *gorm.DB
	GenID          *snowflake.Node
	AuditSvc       auditdomain.Service
	CatalogSvc     catalogdomain.Service
	ReservationSvc reservationdomain.Service
	LivesaleSvc    livesaledomain.Service
	ClaimLimiter   *ratelimit.ClaimLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		db:             p.DB,
		genID:          p.GenID,
		auditSvc:       p.AuditSvc,
		catalogSvc:     p.CatalogSvc,
		reservationSvc: p.ReservationSvc,
		livesaleSvc:    p.LivesaleSvc,
		claimLimiter:   p.ClaimLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AccountContext())

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)

	// -------- Reservations --------
	api.POST("/reservations", s.OpenReservation)
	api.POST("/reservations/:id/commit", s.CommitReservation)
	api.POST("/reservations/:id/release", s.ReleaseReservation)
	api.POST("/reservations/commit_by_source", s.CommitReservationsBySource)
	api.POST("/reservations/release_by_source", s.ReleaseReservationsBySource)

	// -------- Live sales --------
	api.POST("/live/:broadcastId/claims", s.AddLiveClaim)
	api.POST("/live/:broadcastId/finalize", s.FinalizeLiveBatch)

	// -------- Audit logs --------
	api.GET("/audit_logs", s.ListAuditLogs)
}
