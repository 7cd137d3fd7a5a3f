package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/mesaops/comanda/internal/audit"
	auditdomain "github.com/mesaops/comanda/internal/audit/domain"
	"github.com/mesaops/comanda/internal/billsplit"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
	"github.com/mesaops/comanda/internal/catalog"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	"github.com/mesaops/comanda/internal/config"
	"github.com/mesaops/comanda/internal/locks"
	obslogger "github.com/mesaops/comanda/internal/observability/logger"
	obsmetrics "github.com/mesaops/comanda/internal/observability/metrics"
	"github.com/mesaops/comanda/internal/order"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	"github.com/mesaops/comanda/internal/payment"
	paymentdomain "github.com/mesaops/comanda/internal/payment/domain"
	"github.com/mesaops/comanda/internal/providers/pdf"
	"github.com/mesaops/comanda/internal/table"
	tabledomain "github.com/mesaops/comanda/internal/table/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	audit.Module,
	catalog.Module,
	table.Module,
	order.Module,
	billsplit.Module,
	payment.Module,
	locks.Module,
	pdf.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           cfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine     *gin.Engine
	cfg        config.Config
	genID      *snowflake.Node
	catalogSvc catalogdomain.Service
	tableSvc   tabledomain.Service
	orderSvc   orderdomain.Service
	splitSvc   splitdomain.Service
	paymentSvc paymentdomain.Service
	auditSvc   auditdomain.Service
	pricing    *config.PricingConfigHolder
	receipts   *pdf.Renderer
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	GenID      *snowflake.Node
	CatalogSvc catalogdomain.Service
	TableSvc   tabledomain.Service
	OrderSvc   orderdomain.Service
	SplitSvc   splitdomain.Service
	PaymentSvc paymentdomain.Service
	AuditSvc   auditdomain.Service
	Pricing    *config.PricingConfigHolder
	Receipts   *pdf.Renderer
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		genID:      p.GenID,
		catalogSvc: p.CatalogSvc,
		tableSvc:   p.TableSvc,
		orderSvc:   p.OrderSvc,
		splitSvc:   p.SplitSvc,
		paymentSvc: p.PaymentSvc,
		auditSvc:   p.AuditSvc,
		pricing:    p.Pricing,
		receipts:   p.Receipts,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/categories", s.ListCategories)
	api.POST("/categories", s.CreateCategory)
	api.GET("/allergens", s.ListAllergens)
	api.POST("/allergens", s.CreateAllergen)
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.PATCH("/products/:id", s.UpdateProduct)
	api.GET("/pricing", s.GetPricingConfig)
	api.GET("/option_types", s.ListOptionTypes)
	api.POST("/option_types", s.CreateOptionType)
	api.POST("/options", s.CreateOption)

	// -------- Tables --------
	api.GET("/tables", s.ListTables)
	api.POST("/tables", s.CreateTable)
	api.GET("/tables/:id", s.GetTableByID)
	api.POST("/tables/:id/occupy", s.OccupyTable)
	api.POST("/tables/:id/release", s.ReleaseTable)

	// -------- Orders --------
	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrderSummary)
	api.POST("/orders/:id/items", s.AddLineItem)
	api.PATCH("/orders/:id/items/:itemID", s.UpdateLineItemQuantity)
	api.DELETE("/orders/:id/items/:itemID", s.RemoveLineItem)
	api.POST("/orders/:id/discount", s.ApplyDiscount)
	api.POST("/orders/:id/transition", s.TransitionOrder)
	api.POST("/orders/:id/cancel", s.CancelOrder)
	api.GET("/orders/:id/receipt", s.GetOrderReceipt)

	// -------- Bill splits --------
	api.POST("/orders/:id/split", s.FinalizeSplit)
	api.GET("/orders/:id/split", s.GetActiveSplit)

	// -------- Payments --------
	api.POST("/orders/:id/payments", s.RecordPayment)
	api.GET("/orders/:id/payments", s.ListOrderPayments)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.POST("/payments/:id/transition", s.TransitionPayment)

	// -------- Audit --------
	api.GET("/audit_logs", s.ListAuditLogs)
}
