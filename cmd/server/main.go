// Package main is the entry point for the supplyhub API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"supplyhub/internal/config"
	"supplyhub/internal/domain"
	"supplyhub/internal/domain/events"
	"supplyhub/internal/domain/orders"
	"supplyhub/internal/domain/reconcile"
	v1 "supplyhub/internal/infrastructure/http/v1"
	"supplyhub/internal/infrastructure/numerator"
	"supplyhub/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting supplyhub server", "version", version, "driver", cfg.Storage.Driver)

	bus := events.NewBus()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage backend", "driver", cfg.Storage.Driver, "error", err)
	}
	defer b.close()

	locker, closeLocker := newLocker(ctx, cfg, bus, b)
	defer closeLocker()

	// --- Reconciliation ---
	var policy reconcile.Policy = reconcile.DefaultPolicy{}
	if cfg.Stock.AddRule != "" {
		celPolicy, err := reconcile.NewCELPolicy(cfg.Stock.AddRule, cfg.Stock.RemoveRule)
		if err != nil {
			log.Fatalw("invalid stock rules", "error", err)
		}
		policy = celPolicy
		log.Infow("custom stock rules loaded", "add", cfg.Stock.AddRule, "remove", cfg.Stock.RemoveRule)
	}

	reconciler := reconcile.New(reconcile.Deps{
		Products:  b.products,
		Ledger:    b.ledger,
		Items:     b.items,
		TxManager: b.txm,
		Policy:    policy,
	}, reconcile.Config{
		DirectPatchFallback: cfg.Stock.DirectPatchFallback,
		PartialRemoval:      cfg.Stock.PartialRemoval,
		AutoCreateProducts:  cfg.Stock.AutoCreateProducts,
		AutoProductMargin:   cfg.Stock.AutoProductMargin,
		AutoProductCategory: cfg.Stock.AutoProductCategory,
	})

	// --- Orders ---
	orderService := orders.NewService(orders.Deps{
		Repo:       b.orders,
		TxManager:  b.txm,
		Numerator:  numerator.New(b.sequences),
		Suppliers:  b.suppliers,
		Products:   b.products,
		Movements:  b.ledger,
		Reconciler: reconciler,
		Locker:     locker,
		Recorder:   b.recorder,
		Publisher:  bus,
	}, orders.Config{
		NumberPrefix:     cfg.Orders.NumberPrefix,
		NumberStrategy:   cfg.Orders.NumberStrategy,
		NumberRangeSize:  cfg.Orders.NumberRangeSize,
		StatisticsWindow: cfg.Orders.StatisticsWindow,
	})

	knownSupplier := orders.RequireKnownSupplier(b.suppliers)
	orderService.Hooks().On(domain.BeforeCreate, knownSupplier)
	orderService.Hooks().On(domain.BeforeUpdate, knownSupplier)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:             log,
		Orders:             orderService,
		Products:           b.products,
		Ledger:             b.ledger,
		Suppliers:          b.suppliers,
		TxManager:          b.txm,
		Idempotency:        b.idempotency,
		Checks:             b.checks,
		Info:               b.info(version),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Development:        cfg.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      gzhttp.GzipHandler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
