package orders

import (
	"time"

	"supplyhub/internal/core/numerator"
)

// Config tunes the order service.
type Config struct {
	// NumberPrefix of generated order numbers (PO-2026-000001).
	NumberPrefix string
	// NumberStrategy picks how order numbers are drawn. Strict numbers
	// have no gaps; cached numbers reserve NumberRangeSize at a time and
	// lose the unused rest of a range on restart.
	NumberStrategy  numerator.Strategy
	NumberRangeSize int64
	// StatisticsWindow is the trailing period GetOrdersStatistics covers.
	StatisticsWindow time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		NumberPrefix:     "PO",
		NumberStrategy:   numerator.StrategyStrict,
		NumberRangeSize:  50,
		StatisticsWindow: 30 * 24 * time.Hour,
	}
}

func (c Config) numberConfig() numerator.Config {
	cfg := numerator.DefaultConfig(c.NumberPrefix)
	cfg.PadWidth = 6
	return cfg
}

func (c Config) numberOptions() *numerator.Options {
	return &numerator.Options{Strategy: c.NumberStrategy, RangeSize: c.NumberRangeSize}
}
