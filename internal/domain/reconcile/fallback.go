package reconcile

import (
	"context"
	"fmt"
	"time"

	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/pkg/logger"
)

// DirectPatcher changes product stock without touching lots. It is the
// degraded path used when the lot ledger cannot be written; every patch
// leaves stock out of step with the ledger.
type DirectPatcher struct {
	products inventory.ProductCatalog
}

// NewDirectPatcher creates a patcher over the product catalog.
func NewDirectPatcher(products inventory.ProductCatalog) *DirectPatcher {
	return &DirectPatcher{products: products}
}

// UpdateProductStockDirectly adds delta to the product stock, clamped at
// zero, and writes the whole product record back.
func (p *DirectPatcher) UpdateProductStockDirectly(ctx context.Context, productID inventory.ProductID, delta types.Quantity, reason string) (*orders.DirectPatch, error) {
	product, err := p.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	prev := product.Stock
	next := prev + delta
	if next.IsNegative() {
		next = 0
	}
	product.Stock = next
	product.UpdatedAt = time.Now().UTC()

	if err := p.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("patch product %d stock: %w", productID, err)
	}

	logger.Warn(ctx, "product stock patched outside the lot ledger",
		"product_id", productID,
		"delta", delta,
		"previous_stock", prev,
		"new_stock", next,
		"reason", reason)

	return &orders.DirectPatch{
		ProductID:     productID,
		Delta:         delta,
		PreviousStock: prev,
		NewStock:      next,
		Reason:        reason,
	}, nil
}
