package inventory

import (
	"context"

	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
)

// ProductCatalog is the product side of the inventory collaborator.
type ProductCatalog interface {
	GetAll(ctx context.Context) ([]Product, error)
	// GetByID returns apperror NotFound when the product does not exist.
	GetByID(ctx context.Context, productID ProductID) (*Product, error)
	// Create assigns p.ID.
	Create(ctx context.Context, p *Product) error
	// Update writes back the whole record.
	Update(ctx context.Context, p *Product) error
}

// LotQuery tunes GetProductLots.
type LotQuery struct {
	// IncludeEmpty also returns depleted lots.
	IncludeEmpty bool
	// ForUpdate locks the returned lots until the transaction ends.
	ForUpdate bool
}

// LotLedger is the lot/movement side of the inventory collaborator.
type LotLedger interface {
	// GetProductLots returns lots ordered by purchase date, oldest first.
	GetProductLots(ctx context.Context, productID ProductID, q LotQuery) ([]StockLot, error)
	CreateLot(ctx context.Context, lot *StockLot) error
	// ConsumeLot decrements an available lot and returns its new state.
	ConsumeLot(ctx context.Context, lotID id.ID, qty types.Quantity) (*StockLot, error)
	RecordMovement(ctx context.Context, m *StockMovement) error
	// CalculateAverageCost is the quantity-weighted purchase price of available lots.
	CalculateAverageCost(ctx context.Context, productID ProductID) (types.Money, error)
	// AdjustStockDirectly overwrites the product stock field without lot bookkeeping.
	AdjustStockDirectly(ctx context.Context, productID ProductID, stock types.Quantity) error
	// EnsureProductHasLots opens an opening-balance lot for stock that predates
	// lot tracking, so that lot sums keep matching the product stock.
	EnsureProductHasLots(ctx context.Context, productID ProductID) error
	// SyncProductStock sets product stock to the sum of available lots.
	SyncProductStock(ctx context.Context, productID ProductID) (types.Quantity, error)
	GetMovementsByReference(ctx context.Context, refType, refID string) ([]StockMovement, error)
}

// SupplierDirectory is the supplier side of the inventory collaborator.
type SupplierDirectory interface {
	GetAll(ctx context.Context, f SupplierFilter) ([]Supplier, error)
	GetByID(ctx context.Context, supplierID SupplierID) (*Supplier, error)
}
