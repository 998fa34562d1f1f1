package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/harborline/freightway/internal/audit"
	auditdomain "github.com/harborline/freightway/internal/audit/domain"
	"github.com/harborline/freightway/internal/config"
	"github.com/harborline/freightway/internal/container"
	containerdomain "github.com/harborline/freightway/internal/container/domain"
	"github.com/harborline/freightway/internal/customer"
	customerdomain "github.com/harborline/freightway/internal/customer/domain"
	"github.com/harborline/freightway/internal/invoice"
	invoicedomain "github.com/harborline/freightway/internal/invoice/domain"
	"github.com/harborline/freightway/internal/ledger"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	"github.com/harborline/freightway/internal/lock"
	"github.com/harborline/freightway/internal/observability"
	obsmiddleware "github.com/harborline/freightway/internal/observability/logger"
	obsmetrics "github.com/harborline/freightway/internal/observability/metrics"
	obstracing "github.com/harborline/freightway/internal/observability/tracing"
	"github.com/harborline/freightway/internal/payment"
	paymentdomain "github.com/harborline/freightway/internal/payment/domain"
	"github.com/harborline/freightway/internal/providers/email"
	"github.com/harborline/freightway/internal/shipment"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	lock.Module,
	fx.Provide(registerGin),
	audit.Module,
	customer.Module,
	email.Module,
	container.Module,
	shipment.Module,
	invoice.Module,
	ledger.Module,
	payment.Module,
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
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
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	auditSvc     auditdomain.Service
	containerSvc containerdomain.Service
	shipmentSvc  shipmentdomain.Service
	invoiceSvc   invoicedomain.Service
	ledgerSvc    ledgerdomain.Service
	paymentSvc   paymentdomain.Service
	customerSvc  customerdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	AuditSvc     auditdomain.Service
	ContainerSvc containerdomain.Service
	ShipmentSvc  shipmentdomain.Service
	InvoiceSvc   invoicedomain.Service
	LedgerSvc    ledgerdomain.Service
	PaymentSvc   paymentdomain.Service
	CustomerSvc  customerdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		auditSvc:     p.AuditSvc,
		containerSvc: p.ContainerSvc,
		shipmentSvc:  p.ShipmentSvc,
		invoiceSvc:   p.InvoiceSvc,
		ledgerSvc:    p.LedgerSvc,
		paymentSvc:   p.PaymentSvc,
		customerSvc:  p.CustomerSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	containers := api.Group("/containers")
	containers.POST("", s.CreateContainer)
	containers.GET("", s.ListContainers)
	containers.GET("/:id", s.GetContainer)
	containers.PATCH("/:id", s.UpdateContainer)
	containers.DELETE("/:id", s.DeleteContainer)
	containers.GET("/:id/totals", s.GetContainerTotals)
	containers.POST("/:id/expenses", s.AddContainerExpense)
	containers.DELETE("/:id/expenses/:expenseId", s.DeleteContainerExpense)
	containers.POST("/:id/invoices", s.AddContainerInvoice)

	shipments := api.Group("/shipments")
	shipments.POST("", s.CreateShipment)
	shipments.GET("/:id", s.GetShipment)
	shipments.POST("/:id/assign", s.AssignShipment)
	shipments.POST("/:id/unassign", s.UnassignShipment)

	invoices := api.Group("/invoices")
	invoices.POST("/generate", s.GenerateInvoices)
	invoices.GET("/:id", s.GetInvoice)

	ledgerGroup := api.Group("/ledger")
	ledgerGroup.GET("", s.ListLedgerEntries)
	ledgerGroup.POST("/payment", s.RecordPayment)
	ledgerGroup.GET("/receivables", s.GetReceivablesSummary)

	customers := api.Group("/customers")
	customers.POST("", s.CreateCustomer)
	customers.GET("", s.ListCustomers)
	customers.GET("/:id", s.GetCustomer)
	customers.GET("/:id/shipments", s.ListCustomerShipments)
	customers.GET("/:id/invoices", s.ListCustomerInvoices)

	api.GET("/audit-logs", s.ListAuditLogs)
}
