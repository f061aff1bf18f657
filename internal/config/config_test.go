package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/numerator"
)

var knownKeys = []string{
	"APP_ENV", "LOG_LEVEL", "APP_PORT", "STORAGE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS",
	"MIGRATE_ON_START", "LOCAL_DATA_DIR", "REDIS_ADDRESS", "LOCK_TTL", "DIRECT_PATCH_FALLBACK",
	"AUTO_CREATE_PRODUCTS", "AUTO_PRODUCT_MARGIN", "AUTO_PRODUCT_CATEGORY", "STATS_WINDOW",
	"STOCK_ADD_RULE", "STOCK_REMOVE_RULE", "CORS_ALLOWED_ORIGINS", "ORDER_NUMBER_PREFIX",
	"OUTBOX_CHANNEL", "OUTBOX_BATCH_SIZE", "OUTBOX_POLL_INTERVAL", "OUTBOX_RETENTION", "IDEMPOTENCY_TTL",
	"ORDER_NUMBER_STRATEGY", "ORDER_NUMBER_RANGE", "PARTIAL_STOCK_REMOVAL",
}

// clearEnv blanks every variable the loader reads; empty counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range knownKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "local")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverLocal, cfg.Storage.Driver)
	assert.Equal(t, "./data", cfg.Storage.LocalDataDir)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "PO", cfg.Orders.NumberPrefix)
	assert.Equal(t, 30*24*time.Hour, cfg.Orders.StatisticsWindow)
	assert.Equal(t, numerator.StrategyStrict, cfg.Orders.NumberStrategy)
	assert.Equal(t, int64(50), cfg.Orders.NumberRangeSize)
	assert.True(t, cfg.Stock.DirectPatchFallback)
	assert.False(t, cfg.Stock.PartialRemoval)
	assert.True(t, cfg.Stock.AutoCreateProducts)
	assert.True(t, cfg.Stock.AutoProductMargin.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, "Fournisseur", cfg.Stock.AutoProductCategory)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.UsesRedis())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/supplyhub")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("LOCK_TTL", "5s")
	t.Setenv("DIRECT_PATCH_FALLBACK", "false")
	t.Setenv("AUTO_PRODUCT_MARGIN", "0.5")
	t.Setenv("ORDER_NUMBER_STRATEGY", "Cached")
	t.Setenv("ORDER_NUMBER_RANGE", "20")
	t.Setenv("PARTIAL_STOCK_REMOVAL", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("STOCK_ADD_RULE", `new == "CONFIRMED"`)
	t.Setenv("STOCK_REMOVE_RULE", `old == "CONFIRMED" && new == "CANCELLED"`)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL)
	assert.False(t, cfg.Stock.DirectPatchFallback)
	assert.True(t, cfg.Stock.PartialRemoval)
	assert.Equal(t, numerator.StrategyCached, cfg.Orders.NumberStrategy)
	assert.Equal(t, int64(20), cfg.Orders.NumberRangeSize)
	assert.True(t, cfg.Stock.AutoProductMargin.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "postgres without url",
			env:     map[string]string{"STORAGE_DRIVER": "postgres"},
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"STORAGE_DRIVER": "sqlite"},
			wantErr: `STORAGE_DRIVER "sqlite"`,
		},
		{
			name:    "malformed duration",
			env:     map[string]string{"STORAGE_DRIVER": "local", "LOCK_TTL": "soon"},
			wantErr: `LOCK_TTL="soon"`,
		},
		{
			name:    "half a rule set",
			env:     map[string]string{"STORAGE_DRIVER": "local", "STOCK_ADD_RULE": "true"},
			wantErr: "must be set together",
		},
		{
			name:    "unknown numbering strategy",
			env:     map[string]string{"STORAGE_DRIVER": "local", "ORDER_NUMBER_STRATEGY": "random"},
			wantErr: `unknown numbering strategy "random"`,
		},
		{
			name:    "empty number range",
			env:     map[string]string{"STORAGE_DRIVER": "local", "ORDER_NUMBER_RANGE": "0"},
			wantErr: "ORDER_NUMBER_RANGE must be positive",
		},
		{
			name:    "negative margin",
			env:     map[string]string{"STORAGE_DRIVER": "local", "AUTO_PRODUCT_MARGIN": "-0.1"},
			wantErr: "AUTO_PRODUCT_MARGIN cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
