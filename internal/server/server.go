// Package server exposes the HTTP API.
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

	authdomain "github.com/parishkeep/parishkeep/internal/auth/domain"
	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	invitedomain "github.com/parishkeep/parishkeep/internal/invite/domain"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	"github.com/parishkeep/parishkeep/internal/payment/razorpay"
	"github.com/parishkeep/parishkeep/internal/ratelimit"
	subscriptiondomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg *config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
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
	engine          *gin.Engine
	cfg             *config.Config
	db              *gorm.DB
	log             *zap.Logger
	clk             clock.Clock
	genID           *snowflake.Node
	pricing         *config.PricingConfigHolder
	authSvc         authdomain.Service
	organizationSvc orgdomain.Service
	subscriptionSvc subscriptiondomain.Service
	inviteSvc       invitedomain.Service
	payments        *razorpay.Client
	verifyLimiter   *ratelimit.VerifyLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             *config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Clk             clock.Clock
	GenID           *snowflake.Node
	Pricing         *config.PricingConfigHolder
	AuthSvc         authdomain.Service
	OrganizationSvc orgdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	InviteSvc       invitedomain.Service
	Payments        *razorpay.Client
	VerifyLimiter   *ratelimit.VerifyLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log,
		clk:             p.Clk,
		genID:           p.GenID,
		pricing:         p.Pricing,
		authSvc:         p.AuthSvc,
		organizationSvc: p.OrganizationSvc,
		subscriptionSvc: p.SubscriptionSvc,
		inviteSvc:       p.InviteSvc,
		payments:        p.Payments,
		verifyLimiter:   p.VerifyLimiter,
	}
}

func registerRoutes(s *Server) {
	s.registerAuthRoutes()
	s.registerOrganizationRoutes()
	s.registerSubscriptionRoutes()
	s.registerInviteRoutes()
	s.registerPaymentRoutes()
	s.registerReportRoutes()
}
