// Package reconcile keeps inventory lots consistent with supplier order
// status transitions.
package reconcile

import (
	"github.com/shopspring/decimal"
)

// Config tunes reconciliation.
type Config struct {
	// DirectPatchFallback patches product stock directly when the lot
	// ledger fails. Every patch is flagged for manual reconciliation.
	DirectPatchFallback bool

	// PartialRemoval lets a removal the lots cannot fully cover drain what
	// is available and commit, flagging the shortfall for reconciliation.
	// When false the transition fails with INSUFFICIENT_STOCK.
	PartialRemoval bool

	// AutoCreateProducts creates catalog products for order lines that
	// name an unknown product. When false such lines fail validation.
	AutoCreateProducts bool

	// AutoProductMargin is applied over the unit price to derive the sale
	// price of auto-created products.
	AutoProductMargin decimal.Decimal

	// AutoProductCategory is the category of auto-created products.
	AutoProductCategory string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DirectPatchFallback: true,
		AutoCreateProducts:  true,
		AutoProductMargin:   decimal.NewFromFloat(0.30),
		AutoProductCategory: "Fournisseur",
	}
}

var decimalOne = decimal.NewFromInt(1)
