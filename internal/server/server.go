package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingeventdomain "github.com/quotient-hq/quotient/internal/billingevent/domain"
	"github.com/quotient-hq/quotient/internal/config"
	customerdomain "github.com/quotient-hq/quotient/internal/customer/domain"
	limitdomain "github.com/quotient-hq/quotient/internal/limit/domain"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	limitSvc    limitdomain.Service
	planSvc     plandomain.Service
	customerSvc customerdomain.Service
	eventSvc    billingeventdomain.Service
	eventRepo   billingeventdomain.Repository
	webhooks    *webhookVerifier
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	LimitSvc    limitdomain.Service
	PlanSvc     plandomain.Service
	CustomerSvc customerdomain.Service
	EventSvc    billingeventdomain.Service
	EventRepo   billingeventdomain.Repository
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("http.server"),
		genID:       p.GenID,
		limitSvc:    p.LimitSvc,
		planSvc:     p.PlanSvc,
		customerSvc: p.CustomerSvc,
		eventSvc:    p.EventSvc,
		eventRepo:   p.EventRepo,
		webhooks:    newWebhookVerifier(p.Cfg.StripeWebhookSecret),
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/stripe", s.HandleProcessorWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Limits --------
	api.GET("/limits", s.ListLimits)
	api.POST("/limits", s.CreateLimit)
	api.GET("/limits/:name", s.GetLimitByName)
	api.PUT("/limits/:name/default", s.SetLimitDefault)

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)
	api.POST("/plans", s.CreatePlan)
	api.GET("/plans/:id", s.GetPlanByID)
	api.PUT("/plans/:id/limits/:name", s.SetPlanLimit)

	// -------- Customers --------
	api.POST("/customers", s.EnsureCustomer)
	api.GET("/customers/:userId", s.GetCustomer)
	api.GET("/customers/:userId/limits/:name", s.ResolveCustomerLimit)
	api.POST("/customers/:userId/external", s.AttachExternalCustomer)
	api.POST("/customers/:userId/provision", s.ProvisionExternalCustomer)
	api.POST("/customers/:userId/deactivate", s.DeactivateCustomer)

	// -------- Events --------
	api.GET("/events", s.ListEvents)
}
