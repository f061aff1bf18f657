package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"supplyhub/internal/config"
	corelock "supplyhub/internal/core/lock"
	"supplyhub/internal/core/tx"
	"supplyhub/internal/domain/events"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/internal/domain/reconcile"
	"supplyhub/internal/infrastructure/http/v1/handlers"
	"supplyhub/internal/infrastructure/idempotency"
	"supplyhub/internal/infrastructure/lock"
	"supplyhub/internal/infrastructure/messaging"
	"supplyhub/internal/infrastructure/numerator"
	"supplyhub/internal/infrastructure/storage/local"
	"supplyhub/internal/infrastructure/storage/postgres"
	"supplyhub/pkg/logger"
)

// backend is one storage driver wired behind the domain interfaces.
type backend struct {
	driver string

	txm         tx.Manager
	orders      orders.Repository
	items       reconcile.ItemWriter
	products    inventory.ProductCatalog
	ledger      inventory.LotLedger
	suppliers   handlers.SupplierStore
	sequences   numerator.Sequencer
	recorder    events.Recorder
	idempotency idempotency.Store

	checks  map[string]handlers.Pinger
	stats   func() any
	closers []func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverLocal:
		return openLocal(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Storage.MigrateOnStart {
		if err := postgres.Migrate(ctx, cfg.Storage.DatabaseURL); err != nil {
			return nil, err
		}
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DatabaseURL)
	poolCfg.MaxConns = cfg.Storage.MaxConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "database connection established")

	txm := postgres.NewTxManager(pool)
	audit, err := postgres.NewAuditTrail(txm)
	if err != nil {
		pool.Close()
		return nil, err
	}
	orderRepo := postgres.NewOrderRepo(txm)

	return &backend{
		driver:      config.DriverPostgres,
		txm:         txm,
		orders:      orderRepo,
		items:       orderRepo,
		products:    postgres.NewProductRepo(txm),
		ledger:      postgres.NewLedgerRepo(txm),
		suppliers:   postgres.NewSupplierRepo(txm),
		sequences:   postgres.NewSequenceRepo(txm),
		recorder:    events.MultiRecorder{postgres.NewOutbox(txm), audit},
		idempotency: postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		checks:      map[string]handlers.Pinger{"database": pool},
		stats:       func() any { return pool.Stats() },
		closers:     []func(){pool.Close},
	}, nil
}

func openLocal(ctx context.Context, cfg *config.Config) (*backend, error) {
	store, err := local.Open(cfg.Storage.LocalDataDir)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "local data store opened", "dir", store.Dir())

	orderRepo := local.NewOrderRepo(store)
	return &backend{
		driver:      config.DriverLocal,
		txm:         local.NewTxManager(store),
		orders:      orderRepo,
		items:       orderRepo,
		products:    local.NewProductRepo(store),
		ledger:      local.NewLedgerRepo(store),
		suppliers:   local.NewSupplierRepo(store),
		sequences:   local.NewSequenceRepo(store),
		idempotency: idempotency.NewMemory(cfg.IdempotencyTTL),
		checks:      map[string]handlers.Pinger{"storage": store},
	}, nil
}

func (b *backend) info(version string) handlers.AppInfo {
	return handlers.AppInfo{
		App:     "supplyhub",
		Version: version,
		Driver:  b.driver,
		Stats:   b.stats,
	}
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// newLocker picks the order locker. With Redis configured the lock is
// shared between instances, and on the local driver events are also
// published to Redis directly since there is no outbox to relay them.
func newLocker(ctx context.Context, cfg *config.Config, bus *events.Bus, b *backend) (corelock.Locker, func()) {
	if !cfg.UsesRedis() {
		logger.Info(ctx, "using in-process order locks")
		return lock.NewLocal(cfg.Redis.LockTTL), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address})
	b.checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	lockCfg := lock.DefaultRedisConfig()
	lockCfg.TTL = cfg.Redis.LockTTL

	if b.driver == config.DriverLocal {
		publisher := messaging.NewRedisPublisher(rdb, cfg.Outbox.Channel)
		bus.SubscribeAll(publisher.Send)
		logger.Info(ctx, "publishing events to redis", "channel", publisher.Channel())
	}

	logger.Info(ctx, "using redis order locks", "address", cfg.Redis.Address)
	return lock.NewRedis(rdb, lockCfg), func() {
		if err := rdb.Close(); err != nil {
			logger.Warn(ctx, "close redis client", "error", err)
		}
	}
}
