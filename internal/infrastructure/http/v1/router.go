// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"supplyhub/internal/core/tx"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/internal/infrastructure/http/v1/handlers"
	"supplyhub/internal/infrastructure/http/v1/middleware"
	"supplyhub/internal/infrastructure/idempotency"
	"supplyhub/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	Orders    *orders.Service
	Products  inventory.ProductCatalog
	Ledger    inventory.LotLedger
	Suppliers handlers.SupplierStore
	TxManager tx.Manager

	// Idempotency enables X-Idempotency-Key replay when set.
	Idempotency idempotency.Store

	// Checks are pinged by the readiness probe.
	Checks map[string]handlers.Pinger
	Info   handlers.AppInfo

	CORSAllowedOrigins []string
	Development        bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	router.Use(middleware.Actor())

	healthHandler := handlers.NewHealthHandler(cfg.Info, cfg.Checks)
	healthHandler.RegisterRoutes(router.Group("/health"))

	v1 := router.Group("/api/v1")
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	baseHandler := handlers.NewBaseHandler()

	handlers.NewSupplierOrderHandler(baseHandler, cfg.Orders).
		RegisterRoutes(v1.Group("/supplier-orders"))
	handlers.NewProductHandler(baseHandler, cfg.Products, cfg.Ledger, cfg.TxManager).
		RegisterRoutes(v1.Group("/products"))
	handlers.NewSupplierHandler(baseHandler, cfg.Suppliers).
		RegisterRoutes(v1.Group("/suppliers"))

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Authorization",
			middleware.HeaderIdempotencyKey,
			middleware.HeaderRequestID,
			middleware.HeaderActorID,
			middleware.HeaderActorName,
		},
		ExposeHeaders: []string{middleware.HeaderRequestID, middleware.HeaderTraceID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
