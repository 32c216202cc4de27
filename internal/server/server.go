package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/sekarnet/internal/audit"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	"github.com/smallbiznis/sekarnet/internal/auth"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/bill"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
	"github.com/smallbiznis/sekarnet/internal/billingoverview"
	billingoverviewdomain "github.com/smallbiznis/sekarnet/internal/billingoverview/domain"
	"github.com/smallbiznis/sekarnet/internal/cache"
	"github.com/smallbiznis/sekarnet/internal/catalog"
	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/filestore"
	"github.com/smallbiznis/sekarnet/internal/installation"
	installationdomain "github.com/smallbiznis/sekarnet/internal/installation/domain"
	"github.com/smallbiznis/sekarnet/internal/observability"
	obsmiddleware "github.com/smallbiznis/sekarnet/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sekarnet/internal/observability/metrics"
	obstracing "github.com/smallbiznis/sekarnet/internal/observability/tracing"
	"github.com/smallbiznis/sekarnet/internal/ratelimit"
	"github.com/smallbiznis/sekarnet/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
	"github.com/smallbiznis/sekarnet/internal/ticket"
	ticketdomain "github.com/smallbiznis/sekarnet/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	cache.Module,
	catalog.Module,
	filestore.Module,
	subscription.Module,
	bill.Module,
	installation.Module,
	ticket.Module,
	billingoverview.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerValidatorTagNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
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

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine             *gin.Engine
	cfg                config.Config
	log                *zap.Logger
	portal             *config.PortalConfigHolder
	authsvc            authdomain.Service
	auditSvc           auditdomain.Service
	catalogSvc         catalogdomain.Service
	subscriptionSvc    subscriptiondomain.Service
	billSvc            billdomain.Service
	installationSvc    installationdomain.Service
	ticketSvc          ticketdomain.Service
	billingOverviewSvc billingoverviewdomain.Service
	limiter            *ratelimit.Limiter
	obsMetrics         *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin                *gin.Engine
	Cfg                config.Config
	Log                *zap.Logger
	Portal             *config.PortalConfigHolder
	Authsvc            authdomain.Service
	AuditSvc           auditdomain.Service
	CatalogSvc         catalogdomain.Service
	SubscriptionSvc    subscriptiondomain.Service
	BillSvc            billdomain.Service
	InstallationSvc    installationdomain.Service
	TicketSvc          ticketdomain.Service
	BillingOverviewSvc billingoverviewdomain.Service
	Limiter            *ratelimit.Limiter  `optional:"true"`
	ObsMetrics         *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:             p.Gin,
		cfg:                p.Cfg,
		log:                p.Log.Named("http"),
		portal:             p.Portal,
		authsvc:            p.Authsvc,
		auditSvc:           p.AuditSvc,
		catalogSvc:         p.CatalogSvc,
		subscriptionSvc:    p.SubscriptionSvc,
		billSvc:            p.BillSvc,
		installationSvc:    p.InstallationSvc,
		ticketSvc:          p.TicketSvc,
		billingOverviewSvc: p.BillingOverviewSvc,
		limiter:            p.Limiter,
		obsMetrics:         p.ObsMetrics,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Auth --------
	public := api.Group("/auth", s.RateLimit())
	public.POST("/register", s.Register)
	public.POST("/login", s.Login)
	public.POST("/refresh", s.Refresh)

	// -------- Packages --------
	packages := api.Group("/packages")
	packages.GET("", s.OptionalAuth(), s.RateLimit(), s.ListPackages)
	packages.GET("/:id", s.RateLimit(), s.GetPackage)
	packages.POST("", s.AuthRequired(), s.RateLimit(), s.CreatePackage)
	packages.PUT("/:id", s.AuthRequired(), s.RateLimit(), s.UpdatePackage)
	packages.DELETE("/:id", s.AuthRequired(), s.RateLimit(), s.DeactivatePackage)

	authed := api.Group("", s.AuthRequired(), s.RateLimit())

	// -------- Users --------
	authed.GET("/users", s.ListUsers)
	authed.GET("/users/me", s.Me)
	authed.PUT("/users/me", s.UpdateMe)
	authed.GET("/users/:id", s.GetUser)
	authed.PUT("/users/:id", s.AdminUpdateUser)

	// -------- Subscriptions --------
	authed.GET("/subscriptions", s.ListSubscriptions)
	authed.GET("/subscriptions/me", s.ListMySubscriptions)
	authed.POST("/subscriptions", s.CreateSubscription)
	authed.GET("/subscriptions/:id", s.GetSubscription)
	authed.PUT("/subscriptions/:id", s.UpdateSubscription)
	authed.PUT("/subscriptions/:id/suspend", s.SuspendSubscription)
	authed.PUT("/subscriptions/:id/activate", s.ActivateSubscription)
	authed.PUT("/subscriptions/:id/cancel", s.CancelSubscription)

	// -------- Bills --------
	authed.GET("/bills", s.ListBills)
	authed.GET("/bills/me", s.ListMyBills)
	authed.POST("/bills", s.CreateBill)
	authed.GET("/bills/qris/image", s.QRISImage)
	authed.GET("/bills/:id", s.GetBill)
	authed.PUT("/bills/:id", s.UpdateBill)
	authed.PUT("/bills/:id/pay", s.PayBill)
	authed.POST("/bills/:id/upload-payment-proof", s.UploadPaymentProof)
	authed.GET("/bills/:id/payment-proof", s.DownloadPaymentProof)
	authed.PUT("/bills/:id/verify-payment", s.VerifyPayment)
	authed.GET("/bills/:id/qris", s.GetQRISQuote)
	authed.GET("/bills/:id/qris/download", s.DownloadQRIS)
	authed.POST("/bills/:id/qris/verify", s.SubmitQRISProof)

	// -------- Installations --------
	authed.GET("/installations", s.ListInstallations)
	authed.GET("/installations/me", s.ListMyInstallations)
	authed.GET("/installations/assigned", s.ListAssignedInstallations)
	authed.POST("/installations", s.CreateInstallation)
	authed.GET("/installations/:id", s.GetInstallation)
	authed.PUT("/installations/:id/schedule", s.ScheduleInstallation)
	authed.PUT("/installations/:id/start", s.StartInstallation)
	authed.PUT("/installations/:id/complete", s.CompleteInstallation)
	authed.PUT("/installations/:id/fail", s.FailInstallation)
	authed.PUT("/installations/:id/cancel", s.CancelInstallation)

	// -------- Support tickets --------
	authed.GET("/support-tickets", s.ListTickets)
	authed.POST("/support-tickets", s.CreateTicket)
	authed.GET("/support-tickets/:id", s.GetTicket)
	authed.PATCH("/support-tickets/:id", s.UpdateTicket)
	authed.PUT("/support-tickets/:id/assign", s.AssignTicket)
	authed.PUT("/support-tickets/:id/resolve", s.ResolveTicket)
	authed.PUT("/support-tickets/:id/close", s.CloseTicket)
	authed.GET("/support-tickets/:id/replies", s.ListTicketReplies)
	authed.POST("/support-tickets/:id/replies", s.AddTicketReply)

	// -------- Payment statistics --------
	authed.GET("/payments/statistics", s.GetPaymentStatistics)

	// -------- Activity --------
	authed.GET("/activity", s.ListActivity)
}
